package table

import (
	"database/sql"

	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// Ride is one transfer booking as returned by a search. JSON keys are the
// business field names; a missing value encodes as null.
type Ride struct {
	ID            string   `json:"A/A"`
	Date          *string  `json:"THE_DATE"`
	Time          *string  `json:"TIME"`
	Type          *string  `json:"TYPE"`
	From          *string  `json:"FROM"`
	To            *string  `json:"TO"`
	HotelName     *string  `json:"HOTEL NAME"`
	Area          *string  `json:"AREA"`
	FlightCode    *string  `json:"FLY_CODE"`
	FlightCompany *string  `json:"FLY_COMPANY"`
	CustomerName  *string  `json:"THE_NAME"`
	Email         *string  `json:"EMAIL"`
	PaxCount      *float64 `json:"PAX"`
	AdultCount    *float64 `json:"ADULT"`
	ChildInfant   *string  `json:"CH/INF"`
	Info          *string  `json:"INFO"`
	VoucherCode   *string  `json:"VCode"`
	TourOperator  *string  `json:"TOUR_OPER"`
	Price         *float64 `json:"PRICE"`
	DriverPrice   *float64 `json:"DRIVER_PRICE"`
	Driver        *string  `json:"DRIVER"`
}

// fieldTargets returns where each entry of schema.RideFields lands, in the
// same order.
func (r *Ride) fieldTargets() []interface{} {
	return []interface{}{
		&r.Date, &r.Time, &r.Type, &r.From, &r.To,
		&r.HotelName, &r.Area, &r.FlightCode, &r.FlightCompany,
		&r.CustomerName, &r.Email, &r.PaxCount, &r.AdultCount, &r.ChildInfant,
		&r.Info, &r.VoucherCode, &r.TourOperator, &r.Price, &r.DriverPrice, &r.Driver,
	}
}

// scanRide reads one row shaped by selectList. Values are scanned as text
// so legacy text columns holding numbers like "2,5" still decode.
func scanRide(rows interface{ Scan(...interface{}) error }) (*Ride, error) {
	raw := make([]sql.NullString, len(schema.RideFields)+1)
	dest := make([]interface{}, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	ride := &Ride{ID: raw[0].String}
	targets := ride.fieldTargets()
	for i := range schema.RideFields {
		v := raw[i+1]
		switch t := targets[i].(type) {
		case **string:
			*t = textPtr(v)
		case **float64:
			*t = numberPtr(v)
		}
	}
	return ride, nil
}

func textPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// numberPtr reads a numeric column that may be stored as text with a comma
// decimal separator.
func numberPtr(v sql.NullString) *float64 {
	if !v.Valid {
		return nil
	}
	n, ok := schema.ToNullableNumber(v.String).(float64)
	if !ok {
		return nil
	}
	return &n
}
