package surveillance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/model"
)

const (
	openSkyBaseURL  = "https://opensky-network.org/api"
	openSkyTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
)

// Field indices into each OpenSky state vector, mirrored exactly from the
// REST API's documented array layout.
const (
	idxICAO24    = 0
	idxCallsign  = 1
	idxTimePos   = 3
	idxLongitude = 5
	idxLatitude  = 6
	idxOnGround  = 8
	idxVelocity  = 9
	idxTrack     = 10
	idxVertRate  = 11
	idxGeoAlt    = 13
)

// OpenSky is the default ADS-B data source, mirroring the OpenSky Network
// /states/all API.
type OpenSky struct {
	baseURL string
	tokens  *TokenCache
	client  *http.Client
	log     zerolog.Logger
}

// NewOpenSky creates an OpenSky source. creds may be the zero value for
// anonymous access.
func NewOpenSky(creds Credentials, log zerolog.Logger) *OpenSky {
	client := &http.Client{Timeout: 15 * time.Second}
	return &OpenSky{
		baseURL: openSkyBaseURL,
		tokens:  NewTokenCache(openSkyTokenURL, creds, client, log),
		client:  client,
		log:     log.With().Str("component", "opensky").Logger(),
	}
}

func (s *OpenSky) GetAircraftInArea(ctx context.Context, lat, lon, radiusNM float64) ([]model.Contact, error) {
	latMin, latMax, lonMin, lonMax := BoundingBox(lat, lon, radiusNM)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/states/all", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("lamin", strconv.FormatFloat(latMin, 'f', -1, 64))
	q.Set("lamax", strconv.FormatFloat(latMax, 'f', -1, 64))
	q.Set("lomin", strconv.FormatFloat(lonMin, 'f', -1, 64))
	q.Set("lomax", strconv.FormatFloat(lonMax, 'f', -1, 64))
	req.URL.RawQuery = q.Encode()

	if token := s.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opensky request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensky returned %d", resp.StatusCode)
	}

	var body struct {
		States [][]json.RawMessage `json:"states"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode opensky response: %w", err)
	}

	contacts := make([]model.Contact, 0, len(body.States))
	for _, state := range body.States {
		c, ok, err := parseStateVector(state)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed state vector")
			continue
		}
		if !ok {
			continue
		}
		c.DistanceNM, c.BearingDeg = DistanceBearing(lat, lon, c.Latitude, c.Longitude)
		if c.DistanceNM <= radiusNM {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

// parseStateVector decodes one OpenSky state vector by field index. ok is
// false (no error) when either lat or lon is absent, which OpenSky uses to
// mean "position unknown" rather than an error.
func parseStateVector(state []json.RawMessage) (c model.Contact, ok bool, err error) {
	maxIdx := idxGeoAlt
	if len(state) <= maxIdx {
		return c, false, fmt.Errorf("state vector too short: %d fields", len(state))
	}

	lon, lonOK := decodeFloatField(state[idxLongitude])
	lat, latOK := decodeFloatField(state[idxLatitude])
	if !lonOK || !latOK {
		return c, false, nil
	}

	icao24, _ := decodeStringField(state[idxICAO24])
	callsign, _ := decodeStringField(state[idxCallsign])
	onGround, _ := decodeBoolField(state[idxOnGround])
	velocity, hasVel := decodeFloatField(state[idxVelocity])
	track, _ := decodeFloatField(state[idxTrack])
	vertRate, hasVert := decodeFloatField(state[idxVertRate])
	geoAlt, hasAlt := decodeFloatField(state[idxGeoAlt])
	timePos, _ := decodeFloatField(state[idxTimePos])

	c = model.Contact{
		ICAO24:      icao24,
		Callsign:    trimCallsign(callsign),
		Latitude:    lat,
		Longitude:   lon,
		OnGround:    onGround,
		TrackDeg:    track,
		Timestamp:   timestampOrNow(timePos),
	}
	if hasAlt {
		c.AltitudeFt = geoAlt * 3.28084
	}
	if hasVel {
		c.GroundKts = velocity * 1.94384
	}
	if hasVert {
		c.VerticalFPM = vertRate * 196.85
	}
	return c, true, nil
}
