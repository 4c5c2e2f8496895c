package surveillance

import (
	"context"

	"github.com/atcfusion/engine/internal/model"
)

// Source abstracts one ADS-B provider behind a single operation. Concrete
// providers (OpenSky, a local dump1090 feed, ADS-B Exchange) are selected by
// configuration rather than subclassing.
type Source interface {
	GetAircraftInArea(ctx context.Context, lat, lon, radiusNM float64) ([]model.Contact, error)
}
