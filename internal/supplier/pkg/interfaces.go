package pkg

import (
	"context"

	"suppliersync/internal/supplier/models"
)

// Fetcher produces raw records for one identifier: a product code for the
// API client, a category URL for the listing client. Zero records with a nil
// error is a valid answer.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, identifier string) ([]models.RawRecord, error)
}

// Pacer spaces requests to the supplier. Every request after the first one
// of a dispatch (next pages, retries) waits on the same pacer as the
// scheduler. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}
