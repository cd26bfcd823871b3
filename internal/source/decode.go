package source

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lotwatch/lotwatch/internal/inventory"
)

// flexInt decodes JSON numbers that some API fields serve as quoted
// strings (odometer in particular).
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

// flexFloat is the float counterpart of flexInt.
type flexFloat float64

func (n *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexFloat(f)
	return nil
}

// wireRecord mirrors one merged listing record. Required fields are
// pointers so that absence is distinguishable from a zero value.
type wireRecord struct {
	UUID          *string    `json:"uuid"`
	VIN           *string    `json:"vin"`
	Make          *string    `json:"make"`
	Model         *string    `json:"model"`
	Year          *flexInt   `json:"year"`
	Odometer      *flexInt   `json:"odometer"`
	InternetPrice *flexFloat `json:"internetPrice"`
	Address       *struct {
		City       *string `json:"city"`
		State      *string `json:"state"`
		PostalCode *string `json:"postalCode"`
	} `json:"address"`
	InventoryDate *string `json:"inventoryDate"`
	InventoryType *string `json:"inventoryType"`
	Link          *string `json:"link"`
}

// decodeRecord converts a merged raw record into an Observation. Missing
// required fields are collected into Observation.Missing rather than
// failing the page: the reconciler rejects the single record and the
// sweep continues.
func decodeRecord(raw json.RawMessage) inventory.Observation {
	obs := inventory.Observation{Raw: raw}

	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		obs.Missing = []string{"uuid", "vin", "make", "model", "year", "odometer",
			"internetPrice", "address.city", "address.state", "address.postalCode",
			"inventoryDate", "inventoryType", "link"}
		return obs
	}

	missing := func(name string) { obs.Missing = append(obs.Missing, name) }

	if w.UUID == nil {
		missing("uuid")
	} else {
		obs.UUID = *w.UUID
	}
	if w.VIN == nil {
		missing("vin")
	} else {
		obs.VIN = *w.VIN
	}
	if w.Make == nil {
		missing("make")
	} else {
		obs.Make = *w.Make
	}
	if w.Model == nil {
		missing("model")
	} else {
		obs.Model = *w.Model
	}
	if w.Year == nil {
		missing("year")
	} else {
		obs.Year = int(*w.Year)
	}
	if w.Odometer == nil {
		missing("odometer")
	} else {
		obs.Mileage = int(*w.Odometer)
	}
	if w.InternetPrice == nil {
		missing("internetPrice")
	} else {
		obs.Price = float64(*w.InternetPrice)
	}
	if w.Address == nil {
		missing("address.city")
		missing("address.state")
		missing("address.postalCode")
	} else {
		if w.Address.City == nil {
			missing("address.city")
		} else {
			obs.City = *w.Address.City
		}
		if w.Address.State == nil {
			missing("address.state")
		} else {
			obs.State = *w.Address.State
		}
		if w.Address.PostalCode == nil {
			missing("address.postalCode")
		} else {
			obs.PostalCode = *w.Address.PostalCode
		}
	}
	if w.InventoryDate == nil {
		missing("inventoryDate")
	} else {
		obs.InventoryDate = *w.InventoryDate
	}
	if w.InventoryType == nil {
		missing("inventoryType")
	} else {
		obs.InventoryType = *w.InventoryType
	}
	if w.Link == nil {
		missing("link")
	} else {
		obs.Link = *w.Link
	}

	return obs
}
