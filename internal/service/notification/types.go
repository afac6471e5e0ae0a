package notification

import "context"

type Service interface {
	Send(ctx context.Context, text string) error
}
