package service

import "context"

type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}
