package billing

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Valores por defecto de la espera entre intentos de remisión.
const (
	DefaultRetryInitial    = time.Minute
	DefaultRetryMax        = 30 * time.Minute
	DefaultRetryMultiplier = 2.0
)

// RetryPolicy espera exponencial sin aleatoriedad entre intentos de remisión:
// intento n espera Initial·Multiplier^(n-1), acotado a Max.
type RetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultRetryPolicy 1m, 2m, 4m... hasta 30m.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Initial: DefaultRetryInitial, Max: DefaultRetryMax, Multiplier: DefaultRetryMultiplier}
}

// Delay devuelve la espera tras el intento fallido número attempt (1 = primer fallo).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	b := p.backOff()
	if attempt < 1 {
		attempt = 1
	}
	d := b.InitialInterval
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	} else {
		b.InitialInterval = DefaultRetryInitial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	} else {
		b.MaxInterval = DefaultRetryMax
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	} else {
		b.Multiplier = DefaultRetryMultiplier
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
