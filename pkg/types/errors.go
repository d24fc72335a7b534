package types

import "errors"

var (
	// ErrInsufficientData 指标无法计算：K线数量不足或基数为0
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFetch 交易所接口或网络失败
	ErrFetch = errors.New("fetch failed")
	// ErrDelivery 消息投递失败
	ErrDelivery = errors.New("delivery failed")
	// ErrInvalidCommand 无法识别的控制指令
	ErrInvalidCommand = errors.New("invalid command")
	// ErrEmptyUniverse 启动时没有获取到任何交易对
	ErrEmptyUniverse = errors.New("empty symbol universe")
	// ErrMissingCredentials 缺少必需的外部凭证
	ErrMissingCredentials = errors.New("missing credentials")
)
