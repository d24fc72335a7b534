package indicators

import (
	"fmt"

	"binance-market-sentry/pkg/types"
)

// RSI 计算最新一根K线的相对强弱指数
// 使用Wilder平滑：前 window 个涨跌幅取简单平均作为种子，之后 avg = (prev*(window-1) + x) / window
func RSI(klines []*types.KLine, window int) (float64, error) {
	if window < 1 {
		return 0, fmt.Errorf("%w: window=%d", types.ErrInsufficientData, window)
	}
	if len(klines) < window+1 {
		return 0, fmt.Errorf("%w: RSI需要%d根K线，实际%d根", types.ErrInsufficientData, window+1, len(klines))
	}

	var avgGain, avgLoss float64
	w := float64(window)

	for i := 1; i < len(klines); i++ {
		gain, loss := 0.0, 0.0
		if delta := klines[i].Close - klines[i-1].Close; delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i <= window {
			// 累积阶段
			avgGain += gain
			avgLoss += loss
			if i == window {
				avgGain /= w
				avgLoss /= w
			}
			continue
		}

		avgGain = (avgGain*(w-1) + gain) / w
		avgLoss = (avgLoss*(w-1) + loss) / w
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return Round2(100 - 100/(1+rs)), nil
}
