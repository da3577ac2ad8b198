package domain

import "context"

// ServicePort defines the service contract for cleaning
type ServicePort interface {
	Clean(ctx context.Context, in CleanInput) (CleanOutput, error)
	Profiles(ctx context.Context) ([]ProfileInfo, error)
}
