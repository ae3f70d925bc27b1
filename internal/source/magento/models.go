package magento

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawProduct is a catalog record as returned by the Magento products API.
// Immutable once fetched.
type RawProduct struct {
	ID                  int64               `json:"id"`
	SKU                 string              `json:"sku"`
	Name                string              `json:"name"`
	Status              int                 `json:"status"`
	UpdatedAt           string              `json:"updated_at"`
	MediaGalleryEntries []MediaEntry        `json:"media_gallery_entries"`
	ExtensionAttributes ExtensionAttributes `json:"extension_attributes"`
	CustomAttributes    []CustomAttribute   `json:"custom_attributes"`

	attrIndex map[string]AttributeValue
}

type MediaEntry struct {
	File  string   `json:"file"`
	Types []string `json:"types"`
}

type ExtensionAttributes struct {
	WebsiteIDs               []int64 `json:"website_ids"`
	ConfigurableProductLinks []int64 `json:"configurable_product_links"`
}

// CustomAttribute is one (code, value) pair from the record's attribute
// list. Values arrive in several JSON shapes; see AttributeValue.
type CustomAttribute struct {
	Code  string         `json:"attribute_code"`
	Value AttributeValue `json:"value"`
}

// NewCustomAttribute builds a (code, value) pair with a scalar value.
func NewCustomAttribute(code, value string) CustomAttribute {
	return CustomAttribute{Code: code, Value: AttributeValue{str: value}}
}

// NewListAttribute builds a (code, value) pair with a list value.
func NewListAttribute(code string, values ...string) CustomAttribute {
	return CustomAttribute{Code: code, Value: AttributeValue{list: values}}
}

// Attr looks a custom attribute up by code. The index is derived once per
// record; unknown codes are simply absent.
func (p *RawProduct) Attr(code string) (AttributeValue, bool) {
	if p.attrIndex == nil {
		p.attrIndex = make(map[string]AttributeValue, len(p.CustomAttributes))
		for _, a := range p.CustomAttributes {
			if _, ok := p.attrIndex[a.Code]; !ok {
				p.attrIndex[a.Code] = a.Value
			}
		}
	}
	v, ok := p.attrIndex[code]
	return v, ok
}

// PriceOnApplication reports whether the record is flagged as having no
// queryable price. Such SKUs are never sent to the price lookup.
func (p *RawProduct) PriceOnApplication() bool {
	v, ok := p.Attr("price_on_application")
	return ok && v.Truthy()
}

// AttributeValue absorbs the shapes Magento uses for attribute values:
// plain strings, numbers, booleans and lists of strings (category ids).
type AttributeValue struct {
	str  string
	list []string
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.str = s
		return nil
	}

	var l []string
	if err := json.Unmarshal(data, &l); err == nil {
		v.list = l
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v.str = n.String()
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			v.str = "1"
		} else {
			v.str = "0"
		}
		return nil
	}

	return fmt.Errorf("unsupported attribute value: %s", data)
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	if v.list != nil {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.str)
}

// String renders the value as a single string; list values join with ", ".
func (v AttributeValue) String() string {
	if v.list != nil {
		return strings.Join(v.list, ", ")
	}
	return v.str
}

// Truthy reports whether the value reads as a set boolean flag. Magento
// emits flags as "1"/"0", true/false or empty.
func (v AttributeValue) Truthy() bool {
	s := v.String()
	return s != "" && s != "0" && !strings.EqualFold(s, "false")
}

// List renders the value as a list; a scalar becomes a one-element list.
func (v AttributeValue) List() []string {
	if v.list != nil {
		return v.list
	}
	if v.str == "" {
		return nil
	}
	return []string{v.str}
}

// productsResponse is the paged envelope of the products search API. A
// missing total_count signals an upstream error envelope rather than a
// result page.
type productsResponse struct {
	TotalCount *int              `json:"total_count"`
	Items      []RawProduct      `json:"items"`
	Errors     []json.RawMessage `json:"errors"`
	Message    string            `json:"message"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// categoryNode is one node of the hierarchical category tree.
type categoryNode struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	Children []categoryNode `json:"children_data"`
}

type attributeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type priceResponse struct {
	Items []priceItem `json:"items"`
}

type priceItem struct {
	SKU       string    `json:"sku"`
	PriceInfo priceInfo `json:"price_info"`
}

type priceInfo struct {
	ExtensionAttributes struct {
		TaxAdjustments struct {
			FinalPrice float64 `json:"final_price"`
		} `json:"tax_adjustments"`
	} `json:"extension_attributes"`
}
