package surveillance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atcfusion/engine/internal/model"
)

// LocalSource reads aircraft.json from a local dump1090/dump978 instance.
type LocalSource struct {
	baseURL string
	client  *http.Client
}

// NewLocalSource creates a source that polls a local dump1090-compatible HTTP server.
func NewLocalSource(baseURL string) *LocalSource {
	return &LocalSource{baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Second}}
}

func (s *LocalSource) GetAircraftInArea(ctx context.Context, lat, lon, radiusNM float64) ([]model.Contact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/data/aircraft.json", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dump1090 request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dump1090 returned %d", resp.StatusCode)
	}

	var body struct {
		Aircraft []struct {
			Hex       string   `json:"hex"`
			Flight    string   `json:"flight"`
			Lat       *float64 `json:"lat"`
			Lon       *float64 `json:"lon"`
			AltBaro   *float64 `json:"alt_baro"`
			AltGeom   *float64 `json:"alt_geom"`
			Track     float64  `json:"track"`
			GS        float64  `json:"gs"`
			VertRate  float64  `json:"vert_rate"`
		} `json:"aircraft"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode dump1090 response: %w", err)
	}

	contacts := make([]model.Contact, 0, len(body.Aircraft))
	for _, ac := range body.Aircraft {
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		alt := 0.0
		if ac.AltBaro != nil {
			alt = *ac.AltBaro
		} else if ac.AltGeom != nil {
			alt = *ac.AltGeom
		}
		c := model.Contact{
			ICAO24:      ac.Hex,
			Callsign:    trimCallsign(ac.Flight),
			Latitude:    *ac.Lat,
			Longitude:   *ac.Lon,
			AltitudeFt:  alt,
			TrackDeg:    ac.Track,
			GroundKts:   ac.GS,
			VerticalFPM: ac.VertRate,
			OnGround:    alt < 100,
			Timestamp:   time.Now(),
		}
		c.DistanceNM, c.BearingDeg = DistanceBearing(lat, lon, c.Latitude, c.Longitude)
		if c.DistanceNM <= radiusNM {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

// AdsbExchangeSource is a stub for the ADS-B Exchange API variant; wiring a
// live implementation only requires an API key and endpoint, neither of
// which this deployment has configured, so it returns an empty contact set.
type AdsbExchangeSource struct {
	APIKey string
}

func NewAdsbExchangeSource(apiKey string) *AdsbExchangeSource {
	return &AdsbExchangeSource{APIKey: apiKey}
}

func (s *AdsbExchangeSource) GetAircraftInArea(ctx context.Context, lat, lon, radiusNM float64) ([]model.Contact, error) {
	return nil, nil
}
