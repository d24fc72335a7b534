package database

import (
	"context"
	"fmt"
	"time"

	"binance-market-sentry/pkg/types"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Manager 数据库管理器，信号日志的关系库实现
type Manager struct {
	db     *gorm.DB
	driver string
}

// Signal 信号记录模型
type Signal struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"type:varchar(20);not null;index:idx_symbol_time" json:"symbol"`
	Source    string    `gorm:"type:varchar(16);not null;default:'scan'" json:"source"`
	Timestamp int64     `gorm:"not null;index:idx_symbol_time" json:"timestamp"` // 毫秒
	CreatedAt time.Time `json:"created_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// NewManager 根据 driver 创建数据库管理器
func NewManager(config types.DatabaseConfig) (*Manager, error) {
	switch config.Driver {
	case types.DriverMySQL:
		c := config.MySQL
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Username,
			c.Password,
			c.Host,
			c.Port,
			c.Database,
		)
		m, err := open(types.DriverMySQL, mysql.Open(dsn), c.MaxIdleConns, c.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		zap.L().Info("✅ MySQL数据库连接成功",
			zap.String("host", c.Host),
			zap.Int("port", c.Port),
			zap.String("database", c.Database))
		return m, nil

	case types.DriverSQLite:
		m, err := open(types.DriverSQLite, sqlite.Open(config.SQLite.Path), 1, 1)
		if err != nil {
			return nil, err
		}
		zap.L().Info("✅ SQLite数据库已打开", zap.String("path", config.SQLite.Path))
		return m, nil
	}
	return nil, fmt.Errorf("不支持的数据库驱动: %q", config.Driver)
}

func open(driver string, dialector gorm.Dialector, maxIdle, maxOpen int) (*Manager, error) {
	// 配置GORM日志
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 生产环境使用Silent
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接%s失败: %w", driver, err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Hour)

	manager := &Manager{
		db:     db,
		driver: driver,
	}

	// 自动迁移表结构
	if err := manager.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	return manager, nil
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(&Signal{})
}

// Record 写入一条信号
func (m *Manager) Record(ctx context.Context, rec types.SignalRecord) error {
	signal := &Signal{
		Symbol:    rec.Symbol,
		Source:    string(rec.Source),
		Timestamp: rec.SignalTime.UnixMilli(),
		CreatedAt: time.Now(),
	}
	return m.db.WithContext(ctx).Create(signal).Error
}

// CountSince 统计 since 之后的信号次数
func (m *Manager) CountSince(ctx context.Context, symbol string, since time.Time) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&Signal{}).
		Where("symbol = ? AND timestamp >= ?", symbol, since.UnixMilli()).
		Count(&count).Error
	return count, err
}

// HasRepeated 最近的信号是否已有 n 条
func (m *Manager) HasRepeated(ctx context.Context, symbol string, n int) (bool, error) {
	if n < 1 {
		return false, nil
	}
	recent, err := m.Recent(ctx, symbol, n)
	if err != nil {
		return false, err
	}
	return len(recent) == n, nil
}

// Recent 获取最近的信号，按时间倒序
func (m *Manager) Recent(ctx context.Context, symbol string, limit int) ([]Signal, error) {
	var signals []Signal
	err := m.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		Limit(limit).
		Find(&signals).Error
	return signals, err
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (m *Manager) Health() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
