package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"binance-market-sentry/pkg/types"
	"github.com/adshao/go-binance/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 杠杆代币等不参与扫描的基础币种后缀
var leveragedSuffixes = []string{"UP", "DOWN", "BULL", "BEAR"}

// BinanceFetcher 币安现货行情获取器
type BinanceFetcher struct {
	client       *binance.Client
	excludeBases map[string]struct{}
	maxAttempts  int
	backoff      time.Duration
}

// NewBinanceFetcher 创建币安行情获取器
func NewBinanceFetcher(cfg types.BinanceConfig, networkConfig types.NetworkConfig) *BinanceFetcher {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	// 设置超时时间
	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// 创建自定义HTTP客户端
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
	}

	// 如果配置了代理，则使用代理
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}
	client.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}

	zap.L().Info("✅ 初始化币安现货客户端", zap.String("base_url", client.BaseURL), zap.Duration("timeout", timeout))

	return &BinanceFetcher{
		client: client,
		excludeBases: lo.SliceToMap(cfg.ExcludeBases, func(item string) (string, struct{}) {
			return strings.ToUpper(item), struct{}{}
		}),
		maxAttempts: 3,
		backoff:     time.Second,
	}
}

// ListSymbols 获取以 quote 结尾的全部交易对，启动时调用一次
func (f *BinanceFetcher) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	var prices []*binance.SymbolPrice
	err := f.retry(ctx, "ticker/price", func() error {
		var err error
		prices, err = f.client.NewListPricesService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	quote = strings.ToUpper(quote)
	symbols := lo.FilterMap(prices, func(item *binance.SymbolPrice, _ int) (string, bool) {
		if !strings.HasSuffix(item.Symbol, quote) || item.Symbol == quote {
			return "", false
		}
		return item.Symbol, true
	})
	symbols = lo.Reject(lo.Uniq(symbols), func(symbol string, _ int) bool {
		return f.excluded(strings.TrimSuffix(symbol, quote))
	})
	sort.Strings(symbols)

	zap.L().Info("📊 从交易对中筛选出计价交易对",
		zap.String("quote", quote),
		zap.Int("total_pairs", len(prices)),
		zap.Int("quote_pairs", len(symbols)))
	return symbols, nil
}

// excluded 是否为需要排除的基础币种
func (f *BinanceFetcher) excluded(base string) bool {
	if _, ok := f.excludeBases[base]; ok {
		return true
	}
	// 杠杆代币，如 BTCUP / ETHDOWN
	return lo.SomeBy(leveragedSuffixes, func(suffix string) bool {
		return len(base) > len(suffix) && strings.HasSuffix(base, suffix)
	})
}

// GetKlines 获取最近 limit 根K线，按时间正序
func (f *BinanceFetcher) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*types.KLine, error) {
	var raw []*binance.Kline
	err := f.retry(ctx, symbol+"@"+interval, func() error {
		var err error
		raw, err = f.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	klines := make([]*types.KLine, 0, len(raw))
	for _, k := range raw {
		kline, err := convertKline(symbol, interval, k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s K线解析失败: %v", types.ErrFetch, symbol, interval, err)
		}
		klines = append(klines, kline)
	}
	return klines, nil
}

// retry 最多重试 maxAttempts 次，失败时返回包装了 ErrFetch 的错误
func (f *BinanceFetcher) retry(ctx context.Context, what string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			zap.L().Debug("🔄 重试获取数据", zap.String("target", what), zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %v", types.ErrFetch, what, ctx.Err())
			case <-time.After(time.Duration(attempt-1) * f.backoff):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %s: %v", types.ErrFetch, what, lastErr)
}

func convertKline(symbol, interval string, k *binance.Kline) (*types.KLine, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, s := range fields {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		values[i] = d.InexactFloat64()
	}

	return &types.KLine{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  time.UnixMilli(k.OpenTime),
		CloseTime: time.UnixMilli(k.CloseTime),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
