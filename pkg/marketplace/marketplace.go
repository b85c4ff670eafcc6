// Package marketplace holds the process-wide table of SP-API marketplace
// constants: id, regional endpoint host, AWS region, and default currency.
package marketplace

// Marketplace is a country-scoped identifier selecting endpoint host,
// signing region, and currency defaults.
type Marketplace struct {
	ID           string
	CountryCode  string
	EndpointHost string
	Region       string
	Currency     string
}

// Default is the marketplace used when a caller supplies none.
const Default = "GB"

// table is keyed by country code. UK, US, DE, FR, JP are the required
// minimum; CA, IT, ES, AU are supplemental entries carried over from the
// wider marketplace set the upstream API actually publishes.
var table = map[string]Marketplace{
	"GB": {ID: "A1F83G8C2ARO7P", CountryCode: "GB", EndpointHost: "sellingpartnerapi-eu.amazon.com", Region: "eu-west-1", Currency: "GBP"},
	"US": {ID: "ATVPDKIKX0DER", CountryCode: "US", EndpointHost: "sellingpartnerapi-na.amazon.com", Region: "us-east-1", Currency: "USD"},
	"DE": {ID: "A1PA6795UKMFR9", CountryCode: "DE", EndpointHost: "sellingpartnerapi-eu.amazon.com", Region: "eu-west-1", Currency: "EUR"},
	"FR": {ID: "A13V1IB3VIYZZH", CountryCode: "FR", EndpointHost: "sellingpartnerapi-eu.amazon.com", Region: "eu-west-1", Currency: "EUR"},
	"JP": {ID: "A1VC38T7YXB528", CountryCode: "JP", EndpointHost: "sellingpartnerapi-fe.amazon.com", Region: "us-west-2", Currency: "JPY"},
	"CA": {ID: "A2EUQ1WTGCTBG2", CountryCode: "CA", EndpointHost: "sellingpartnerapi-na.amazon.com", Region: "us-east-1", Currency: "CAD"},
	"IT": {ID: "APJ6JRA9NG5V4", CountryCode: "IT", EndpointHost: "sellingpartnerapi-eu.amazon.com", Region: "eu-west-1", Currency: "EUR"},
	"ES": {ID: "A1RKKUPIHCS9HS", CountryCode: "ES", EndpointHost: "sellingpartnerapi-eu.amazon.com", Region: "eu-west-1", Currency: "EUR"},
	"AU": {ID: "A39IBJ37TRP1C6", CountryCode: "AU", EndpointHost: "sellingpartnerapi-fe.amazon.com", Region: "us-west-2", Currency: "AUD"},
}

// byID indexes the same records for lookup by marketplace id, the form
// most SP-API parameters and responses actually carry.
var byID = func() map[string]Marketplace {
	m := make(map[string]Marketplace, len(table))
	for _, mp := range table {
		m[mp.ID] = mp
	}
	return m
}()

// Lookup resolves a marketplace by its SP-API id (e.g. "A1F83G8C2ARO7P").
func Lookup(id string) (Marketplace, bool) {
	mp, ok := byID[id]
	return mp, ok
}

// ByCountry resolves a marketplace by its ISO country code (e.g. "GB").
func ByCountry(code string) (Marketplace, bool) {
	mp, ok := table[code]
	return mp, ok
}

// DefaultMarketplace returns the process default (UK).
func DefaultMarketplace() Marketplace {
	mp, _ := table[Default]
	return mp
}

// Valid reports whether id resolves to a known marketplace.
func Valid(id string) bool {
	_, ok := byID[id]
	return ok
}

// ValidateAll reports whether every id in ids is known, returning the
// list of invalid ids (empty when all valid).
func ValidateAll(ids []string) (bool, []string) {
	var invalid []string
	for _, id := range ids {
		if !Valid(id) {
			invalid = append(invalid, id)
		}
	}
	return len(invalid) == 0, invalid
}
