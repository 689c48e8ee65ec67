package inventory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind selects how a column is stored, normalized and rendered.
type Kind int

const (
	KindText Kind = iota
	// KindIdentifier values are kept as exact text, never numerically cast.
	KindIdentifier
	KindHTML
	KindDate
	KindMeasurement
	KindMoney
	KindDecimal
	KindBool
	KindQuantity
	KindTags
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindIdentifier:
		return "identifier"
	case KindHTML:
		return "html"
	case KindDate:
		return "date"
	case KindMeasurement:
		return "measurement"
	case KindMoney:
		return "money"
	case KindDecimal:
		return "decimal"
	case KindBool:
		return "bool"
	case KindQuantity:
		return "quantity"
	case KindTags:
		return "tags"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Storage is the Go representation a kind is held in.
type Storage int

const (
	StorageString Storage = iota
	StorageDecimal
	StorageInt
	StorageBool
	StorageList
)

func (k Kind) Storage() Storage {
	switch k {
	case KindMeasurement, KindMoney, KindDecimal:
		return StorageDecimal
	case KindQuantity:
		return StorageInt
	case KindBool:
		return StorageBool
	case KindTags:
		return StorageList
	}
	return StorageString
}

// Column is one field of the canonical schema.
type Column int

// canonical column order
const (
	StyleId Column = iota
	Handle
	PublishedAt
	CreatedAt
	Product
	StyleName
	ProductType
	ProductLine
	Tags
	Vendor
	Description
	VariantTitle
	Color
	ColorSimplified
	ColorStandardized
	Size
	Rise
	RiseLabel
	BackRise
	Inseam
	InseamLabel
	InseamStyle
	LegOpening
	JeanStyle
	Stretch
	Gender
	Price
	CompareAtPrice
	Promo
	AvailableForSale
	QuantityAvailable
	OldQuantityAvailable
	QuantityOfStyle
	InstockPercent
	SkuShopify
	SkuBrand
	Barcode
	ImageUrl
	SkuUrl

	numColumns
)

type columnDef struct {
	name   string
	header string
	kind   Kind
}

var columnDefs = [numColumns]columnDef{
	StyleId:              {"StyleId", "Style Id", KindIdentifier},
	Handle:               {"Handle", "Handle", KindText},
	PublishedAt:          {"PublishedAt", "Published At", KindDate},
	CreatedAt:            {"CreatedAt", "Created At", KindDate},
	Product:              {"Product", "Product", KindText},
	StyleName:            {"StyleName", "Style Name", KindText},
	ProductType:          {"ProductType", "Product Type", KindText},
	ProductLine:          {"ProductLine", "Product Line", KindText},
	Tags:                 {"Tags", "Tags", KindTags},
	Vendor:               {"Vendor", "Vendor", KindText},
	Description:          {"Description", "Description", KindHTML},
	VariantTitle:         {"VariantTitle", "Variant Title", KindText},
	Color:                {"Color", "Color", KindText},
	ColorSimplified:      {"ColorSimplified", "Color - Simplified", KindText},
	ColorStandardized:    {"ColorStandardized", "Color - Standardized", KindText},
	Size:                 {"Size", "Size", KindText},
	Rise:                 {"Rise", "Rise", KindMeasurement},
	RiseLabel:            {"RiseLabel", "Rise Label", KindText},
	BackRise:             {"BackRise", "Back Rise", KindMeasurement},
	Inseam:               {"Inseam", "Inseam", KindMeasurement},
	InseamLabel:          {"InseamLabel", "Inseam Label", KindText},
	InseamStyle:          {"InseamStyle", "Inseam Style", KindText},
	LegOpening:           {"LegOpening", "Leg Opening", KindMeasurement},
	JeanStyle:            {"JeanStyle", "Jean Style", KindText},
	Stretch:              {"Stretch", "Stretch", KindText},
	Gender:               {"Gender", "Gender", KindText},
	Price:                {"Price", "Price", KindMoney},
	CompareAtPrice:       {"CompareAtPrice", "Compare at Price", KindMoney},
	Promo:                {"Promo", "Promo", KindText},
	AvailableForSale:     {"AvailableForSale", "Available for Sale", KindBool},
	QuantityAvailable:    {"QuantityAvailable", "Quantity Available", KindQuantity},
	OldQuantityAvailable: {"OldQuantityAvailable", "Old Quantity Available", KindQuantity},
	QuantityOfStyle:      {"QuantityOfStyle", "Quantity of style", KindQuantity},
	InstockPercent:       {"InstockPercent", "Instock Percent", KindDecimal},
	SkuShopify:           {"SkuShopify", "SKU - Shopify", KindIdentifier},
	SkuBrand:             {"SkuBrand", "SKU - Brand", KindText},
	Barcode:              {"Barcode", "Barcode", KindIdentifier},
	ImageUrl:             {"ImageUrl", "Image URL", KindText},
	SkuUrl:               {"SkuUrl", "SKU URL", KindText},
}

var columnsByName = func() map[string]Column {
	out := make(map[string]Column, numColumns*2)
	for c := Column(0); c < numColumns; c++ {
		out[strings.ToLower(columnDefs[c].name)] = c
		out[strings.ToLower(columnDefs[c].header)] = c
	}
	return out
}()

func (c Column) Valid() bool {
	return c >= 0 && c < numColumns
}

func (c Column) String() string {
	if !c.Valid() {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnDefs[c].name
}

// Header is the column title written to output files.
func (c Column) Header() string {
	return columnDefs[c].header
}

func (c Column) Kind() Kind {
	return columnDefs[c].kind
}

// ParseColumn accepts either the column name ("SkuShopify") or its header
// ("SKU - Shopify"), case-insensitively.
func ParseColumn(name string) (Column, error) {
	c, ok := columnsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown column %q", name)
	}
	return c, nil
}

func (c Column) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Column) UnmarshalText(text []byte) error {
	parsed, err := ParseColumn(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Column) UnmarshalJSON(buff []byte) error {
	name, err := unquote(buff)
	if err != nil {
		return err
	}
	return c.UnmarshalText([]byte(name))
}

// unquote accepts both json and json5 (single quoted) string literals.
func unquote(buff []byte) (string, error) {
	s := strings.TrimSpace(string(buff))
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], nil
	}
	var out string
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}

// AllColumns returns the full canonical column order.
func AllColumns() []Column {
	out := make([]Column, numColumns)
	for i := range out {
		out[i] = Column(i)
	}
	return out
}

// Headers maps columns to their output titles.
func Headers(columns []Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Header()
	}
	return out
}
