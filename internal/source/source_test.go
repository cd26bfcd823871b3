package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(Config{BaseURL: "https://example.test/getInventory"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, s.PageSize())
}

func TestFetchPage_QueryParameters(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Write([]byte(`{"inventory": [], "pageInfo": {"trackingData": []}}`))
	}))
	defer srv.Close()

	s, err := New(Config{
		BaseURL:   srv.URL + "/getInventory",
		GeoZip:    "78701",
		GeoRadius: 0,
		PageSize:  100,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)

	page, err := s.FetchPage(context.Background(), 200, "")
	require.NoError(t, err)
	assert.Empty(t, page)

	assert.Equal(t, "200", gotQuery["start"])
	assert.Equal(t, "100", gotQuery["pageSize"])
	assert.Equal(t, "78701", gotQuery["geoZip"])
	assert.Equal(t, "0", gotQuery["geoRadius"])
	assert.Equal(t, "inventoryDate asc", gotQuery["sortBy"])
	_, hasSearch := gotQuery["search"]
	assert.False(t, hasSearch, "search must be omitted for full-sweep pages")
}

func TestFetchPage_SearchFilter(t *testing.T) {
	var gotSearch string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("search")
		w.Write([]byte(`{"inventory": [], "pageInfo": {"trackingData": []}}`))
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.FetchPage(context.Background(), 0, "5YFEPMAE5NP326733")
	require.NoError(t, err)
	assert.Equal(t, "5YFEPMAE5NP326733", gotSearch)
}

func TestFetchPage_TrackingDataMerge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Second listing has no uuid of its own; trackingData supplies it.
		w.Write([]byte(`{
			"inventory": [
				{"vin": "VINA", "make": "Toyota", "model": "Corolla", "year": 2022,
				 "odometer": 10, "internetPrice": 100,
				 "address": {"city": "Austin", "state": "TX", "postalCode": "78701"},
				 "inventoryDate": "2026-07-01", "inventoryType": "used", "link": "/a"},
				{"vin": "VINB", "make": "Honda", "model": "Civic", "year": 2023,
				 "odometer": 20, "internetPrice": 200,
				 "address": {"city": "Dallas", "state": "TX", "postalCode": "75201"},
				 "inventoryDate": "2026-07-02", "inventoryType": "used", "link": "/b"}
			],
			"pageInfo": {"trackingData": [
				{"uuid": "uuid-a"},
				{"uuid": "uuid-b"}
			]}
		}`))
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	page, err := s.FetchPage(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, "uuid-a", page[0].UUID)
	assert.Equal(t, "VINA", page[0].VIN)
	assert.Empty(t, page[0].Missing)
	assert.Equal(t, "uuid-b", page[1].UUID)
	assert.Equal(t, 20, page[1].Mileage)

	// Raw payload carries the merged record for archiving.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(page[0].Raw, &raw))
	assert.Equal(t, "uuid-a", raw["uuid"])
	assert.Equal(t, "VINA", raw["vin"])
}

func TestFetchPage_RecordsBeyondTrackingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One tracking record for two listings: the second passes through
		// unmerged and comes back missing its uuid.
		w.Write([]byte(`{
			"inventory": [
				{"uuid": "uuid-a", "vin": "VINA", "make": "Toyota", "model": "Corolla",
				 "year": 2022, "odometer": 10, "internetPrice": 100,
				 "address": {"city": "Austin", "state": "TX", "postalCode": "78701"},
				 "inventoryDate": "2026-07-01", "inventoryType": "used", "link": "/a"},
				{"vin": "VINB", "make": "Honda", "model": "Civic", "year": 2023,
				 "odometer": 20, "internetPrice": 200,
				 "address": {"city": "Dallas", "state": "TX", "postalCode": "75201"},
				 "inventoryDate": "2026-07-02", "inventoryType": "used", "link": "/b"}
			],
			"pageInfo": {"trackingData": [{}]}
		}`))
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	page, err := s.FetchPage(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Contains(t, page[0].Missing, "uuid")
	assert.Contains(t, page[1].Missing, "uuid")
	assert.Equal(t, "VINB", page[1].VIN)
}

func TestFetchPage_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.FetchPage(context.Background(), 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchPage_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	s, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.FetchPage(context.Background(), 0, "")
	require.Error(t, err)
}

func TestDecodeRecord_MissingFields(t *testing.T) {
	obs := decodeRecord(json.RawMessage(`{"uuid": "u1", "vin": "V1"}`))

	assert.Equal(t, "u1", obs.UUID)
	assert.Equal(t, "V1", obs.VIN)
	assert.ElementsMatch(t, []string{
		"make", "model", "year", "odometer", "internetPrice",
		"address.city", "address.state", "address.postalCode",
		"inventoryDate", "inventoryType", "link",
	}, obs.Missing)
}

func TestDecodeRecord_FlexibleNumbers(t *testing.T) {
	// odometer quoted, internetPrice plain; both must parse.
	obs := decodeRecord(json.RawMessage(`{
		"uuid": "u1", "vin": "V1", "make": "Kia", "model": "Soul", "year": "2020",
		"odometer": "55012", "internetPrice": "15999.5",
		"address": {"city": "Austin", "state": "TX", "postalCode": "78701"},
		"inventoryDate": "2026-07-01", "inventoryType": "used", "link": "/v1"
	}`))

	require.Empty(t, obs.Missing)
	assert.Equal(t, 2020, obs.Year)
	assert.Equal(t, 55012, obs.Mileage)
	assert.Equal(t, 15999.5, obs.Price)
}

func TestNew_SOCKS5Configured(t *testing.T) {
	// The dialer is constructed eagerly; a syntactically valid address
	// must succeed without any network traffic.
	s, err := New(Config{BaseURL: "https://example.test", SOCKS5: "127.0.0.1:1080"})
	require.NoError(t, err)
	require.NotNil(t, s)
}
