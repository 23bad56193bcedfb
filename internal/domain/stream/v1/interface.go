package streamv1

import "context"

// Publisher delivers events to market data subscribers. Delivery is best
// effort; the matching step never depends on it.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=streamv1_mock
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}
