package geocode

import (
	"context"
	"net/url"
	"slices"
	"strconv"
)

// cityTypes lists the component types that can name a city, most specific
// match first.
var cityTypes = []string{"locality", "postal_town", "administrative_area_level_3", "sublocality", "neighborhood", "administrative_area_level_2"}

// Reverse resolves lat/lng to the city, region and country of the closest
// Google result.
func (g *geocoder) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	params := url.Values{
		"latlng": {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	resp, err := g.lookup(ctx, params)
	if err != nil {
		return nil, err
	}

	addr := &Address{}
	for _, r := range resp.Results {
		if addr.Formatted == "" {
			addr.Formatted = r.FormattedAddress
		}
		fillAddress(addr, r.AddressComponents)
		if addr.Complete() && addr.PostalCode != "" {
			break
		}
	}
	return addr, nil
}

func fillAddress(addr *Address, comps []addressComponent) {
	if addr.City == "" {
		for _, t := range cityTypes {
			if c, ok := findComponent(comps, t); ok {
				addr.City = c.LongName
				break
			}
		}
	}
	if addr.Region == "" {
		if c, ok := findComponent(comps, "administrative_area_level_1"); ok {
			addr.Region = c.ShortName
		}
	}
	if addr.Country == "" {
		if c, ok := findComponent(comps, "country"); ok {
			addr.Country = c.ShortName
		}
	}
	if addr.PostalCode == "" {
		if c, ok := findComponent(comps, "postal_code"); ok {
			addr.PostalCode = c.LongName
		}
	}
}

func findComponent(comps []addressComponent, typ string) (addressComponent, bool) {
	for _, c := range comps {
		if slices.Contains(c.Types, typ) {
			return c, true
		}
	}
	return addressComponent{}, false
}
