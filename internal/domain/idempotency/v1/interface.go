package idempotencyv1

import "context"

// Gate guards submissions against duplicate delivery.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=idempotencyv1_mock
type Gate interface {
	// Claim reserves the key for the configured TTL. The first caller gets
	// true; every later caller gets false while the claim lives. A gate
	// outage returns an error and the caller must treat the submission as
	// unverified.
	Claim(ctx context.Context, key string) (bool, error)
}
