package store

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/shared"
)

// driverRecord is the canonical shape of a driver document. Historical
// spellings are mapped onto it by fieldAliases.
type driverRecord struct {
	DriverID           string         `mapstructure:"driver_id"`
	Name               string         `mapstructure:"name"`
	Phone              string         `mapstructure:"phone"`
	PhoneNumber        string         `mapstructure:"phone_number"`
	Mobile             string         `mapstructure:"mobile"`
	MobileNo           string         `mapstructure:"mobile_no"`
	DriverMobileNumber string         `mapstructure:"driver_mobile_number"`
	Extra              map[string]any `mapstructure:",remain"`
}

var fieldAliases = map[string][]string{
	"name": {"drivername", "fullname"},
}

// phoneFields lists the canonical phone keys dropped from Attributes in favour
// of the single "phone" entry.
var phoneFields = []string{"phone_number", "mobile", "mobile_no", "driver_mobile_number"}

func decodeDriverRecord(raw map[string]any) (*driverRecord, error) {
	var rec driverRecord
	cfg := &mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &rec,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			key := normalizeKey(mapKey)
			if aliases, ok := fieldAliases[fieldName]; ok {
				for _, a := range aliases {
					if key == a {
						return true
					}
				}
			}
			return key == normalizeKey(fieldName)
		},
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create driver decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode driver record: %w", err)
	}
	rec.DriverID = strings.TrimSpace(rec.DriverID)
	if rec.DriverID == "" {
		return nil, fmt.Errorf("driver record has no driver id")
	}
	return &rec, nil
}

// phones returns the distinct digit-only phone numbers of the record in
// field priority order.
func (r *driverRecord) phones() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range []string{r.Phone, r.PhoneNumber, r.Mobile, r.MobileNo, r.DriverMobileNumber} {
		d := shared.DigitsOnly(p)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// context converts the record to the canonical DriverContext.
func (r *driverRecord) context() *domain.DriverContext {
	attrs := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		attrs[k] = v
	}
	for _, k := range phoneFields {
		delete(attrs, k)
	}
	delete(attrs, "_id")

	phones := r.phones()
	attrs["driver_id"] = r.DriverID
	if r.Name != "" {
		attrs["name"] = r.Name
	}
	if len(phones) > 0 {
		attrs["phone"] = phones[0]
	}

	return &domain.DriverContext{
		DriverID:   r.DriverID,
		Name:       r.Name,
		Phones:     phones,
		Attributes: attrs,
	}
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
