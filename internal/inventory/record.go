package inventory

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one upstream item as produced by a source adapter. Fields
// holds decoded JSON (numbers as json.Number) or extracted page text.
type RawRecord struct {
	Source string
	// JoinKey is the key the record was matched under, empty until reconciled.
	JoinKey string
	Fields  map[string]any
}

// EmitFunc receives records from an adapter in fetch order.
type EmitFunc func(RawRecord) error

// CanonicalRecord is one style/variant row of the output schema.
type CanonicalRecord struct {
	// JoinKey is the primary source key the record was built from.
	JoinKey string `validate:"-"`

	StyleId           string `validate:"omitempty,identifier"`
	Handle            string
	PublishedAt       string
	CreatedAt         string
	Product           string
	StyleName         string
	ProductType       string
	ProductLine       string
	Tags              []string
	Vendor            string
	Description       string
	VariantTitle      string
	Color             string
	ColorSimplified   string
	ColorStandardized string
	Size              string
	RiseLabel         string
	InseamLabel       string
	InseamStyle       string
	JeanStyle         string
	Stretch           string
	Gender            string
	Promo             string
	SkuShopify        string `validate:"omitempty,identifier"`
	SkuBrand          string
	Barcode           string `validate:"omitempty,identifier"`
	ImageUrl          string
	SkuUrl            string

	Rise       decimal.NullDecimal `validate:"omitempty,gte=0"`
	BackRise   decimal.NullDecimal `validate:"omitempty,gte=0"`
	Inseam     decimal.NullDecimal `validate:"omitempty,gte=0"`
	LegOpening decimal.NullDecimal `validate:"omitempty,gte=0"`

	Price          decimal.NullDecimal `validate:"omitempty,gte=0"`
	CompareAtPrice decimal.NullDecimal `validate:"omitempty,gte=0"`
	InstockPercent decimal.NullDecimal `validate:"omitempty,gte=0,lte=100"`

	AvailableForSale sql.NullBool

	QuantityAvailable    sql.NullInt64 `validate:"omitempty,gte=0"`
	OldQuantityAvailable sql.NullInt64 `validate:"omitempty,gte=0"`
	QuantityOfStyle      sql.NullInt64 `validate:"omitempty,gte=0"`
}

func (r *CanonicalRecord) text(c Column) *string {
	switch c {
	case StyleId:
		return &r.StyleId
	case Handle:
		return &r.Handle
	case PublishedAt:
		return &r.PublishedAt
	case CreatedAt:
		return &r.CreatedAt
	case Product:
		return &r.Product
	case StyleName:
		return &r.StyleName
	case ProductType:
		return &r.ProductType
	case ProductLine:
		return &r.ProductLine
	case Vendor:
		return &r.Vendor
	case Description:
		return &r.Description
	case VariantTitle:
		return &r.VariantTitle
	case Color:
		return &r.Color
	case ColorSimplified:
		return &r.ColorSimplified
	case ColorStandardized:
		return &r.ColorStandardized
	case Size:
		return &r.Size
	case RiseLabel:
		return &r.RiseLabel
	case InseamLabel:
		return &r.InseamLabel
	case InseamStyle:
		return &r.InseamStyle
	case JeanStyle:
		return &r.JeanStyle
	case Stretch:
		return &r.Stretch
	case Gender:
		return &r.Gender
	case Promo:
		return &r.Promo
	case SkuShopify:
		return &r.SkuShopify
	case SkuBrand:
		return &r.SkuBrand
	case Barcode:
		return &r.Barcode
	case ImageUrl:
		return &r.ImageUrl
	case SkuUrl:
		return &r.SkuUrl
	}
	return nil
}

func (r *CanonicalRecord) decimal(c Column) *decimal.NullDecimal {
	switch c {
	case Rise:
		return &r.Rise
	case BackRise:
		return &r.BackRise
	case Inseam:
		return &r.Inseam
	case LegOpening:
		return &r.LegOpening
	case Price:
		return &r.Price
	case CompareAtPrice:
		return &r.CompareAtPrice
	case InstockPercent:
		return &r.InstockPercent
	}
	return nil
}

func (r *CanonicalRecord) integer(c Column) *sql.NullInt64 {
	switch c {
	case QuantityAvailable:
		return &r.QuantityAvailable
	case OldQuantityAvailable:
		return &r.OldQuantityAvailable
	case QuantityOfStyle:
		return &r.QuantityOfStyle
	}
	return nil
}

// Set stores a normalized value into column c. Accepted values are string
// for text-like columns, decimal.Decimal, int64, bool and []string matching
// the column's storage. nil clears the column.
func (r *CanonicalRecord) Set(c Column, value any) error {
	if !c.Valid() {
		return fmt.Errorf("set %s: invalid column", c)
	}
	switch c.Kind().Storage() {
	case StorageString:
		if value == nil {
			*r.text(c) = ""
			return nil
		}
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("set %s: expected string, got %T", c, value)
		}
		*r.text(c) = v
	case StorageDecimal:
		switch v := value.(type) {
		case nil:
			*r.decimal(c) = decimal.NullDecimal{}
		case decimal.Decimal:
			*r.decimal(c) = decimal.NewNullDecimal(v)
		case decimal.NullDecimal:
			*r.decimal(c) = v
		default:
			return fmt.Errorf("set %s: expected decimal, got %T", c, value)
		}
	case StorageInt:
		switch v := value.(type) {
		case nil:
			*r.integer(c) = sql.NullInt64{}
		case int64:
			*r.integer(c) = sql.NullInt64{Int64: v, Valid: true}
		case int:
			*r.integer(c) = sql.NullInt64{Int64: int64(v), Valid: true}
		default:
			return fmt.Errorf("set %s: expected integer, got %T", c, value)
		}
	case StorageBool:
		switch v := value.(type) {
		case nil:
			r.AvailableForSale = sql.NullBool{}
		case bool:
			r.AvailableForSale = sql.NullBool{Bool: v, Valid: true}
		default:
			return fmt.Errorf("set %s: expected bool, got %T", c, value)
		}
	case StorageList:
		switch v := value.(type) {
		case nil:
			r.Tags = nil
		case []string:
			r.Tags = v
		default:
			return fmt.Errorf("set %s: expected []string, got %T", c, value)
		}
	}
	return nil
}

// Get returns the stored value of c in the same representation Set takes,
// nil when blank.
func (r *CanonicalRecord) Get(c Column) any {
	if r.IsBlank(c) {
		return nil
	}
	switch c.Kind().Storage() {
	case StorageString:
		return *r.text(c)
	case StorageDecimal:
		return r.decimal(c).Decimal
	case StorageInt:
		return r.integer(c).Int64
	case StorageBool:
		return r.AvailableForSale.Bool
	case StorageList:
		return r.Tags
	}
	return nil
}

// IsBlank reports whether column c has no value.
func (r *CanonicalRecord) IsBlank(c Column) bool {
	switch c.Kind().Storage() {
	case StorageString:
		return strings.TrimSpace(*r.text(c)) == ""
	case StorageDecimal:
		return !r.decimal(c).Valid
	case StorageInt:
		return !r.integer(c).Valid
	case StorageBool:
		return !r.AvailableForSale.Valid
	case StorageList:
		return len(r.Tags) == 0
	}
	return true
}

// Cell renders column c as output text. Measurements and money keep two
// decimals, booleans are TRUE/FALSE and tags are comma joined.
func (r *CanonicalRecord) Cell(c Column) string {
	if r.IsBlank(c) {
		return ""
	}
	switch c.Kind().Storage() {
	case StorageString:
		return *r.text(c)
	case StorageDecimal:
		return r.decimal(c).Decimal.StringFixed(2)
	case StorageInt:
		return strconv.FormatInt(r.integer(c).Int64, 10)
	case StorageBool:
		if r.AvailableForSale.Bool {
			return "TRUE"
		}
		return "FALSE"
	case StorageList:
		return strings.Join(r.Tags, ", ")
	}
	return ""
}

// Row renders the record's cells in column order.
func (r *CanonicalRecord) Row(columns []Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.Cell(c)
	}
	return out
}

// StyleKey groups variants of one style: StyleId, falling back to Handle.
func (r *CanonicalRecord) StyleKey() string {
	if r.StyleId != "" {
		return r.StyleId
	}
	return r.Handle
}
