// Package validator turns raw order form input into a normalized entity.Order or
// the complete list of reasons it was rejected. It performs no I/O.
package validator

import (
	"strings"

	"github.com/kcmvp/orderdesk"
	"github.com/kcmvp/orderdesk/constraint"
	"github.com/kcmvp/orderdesk/entity"
	"github.com/samber/mo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field names shared by every input channel (HTML form, JSON body, CLI flags).
const (
	CustomerName = "customer_name"
	Email        = "email"
	ProductName  = "product_name"
	Quantity     = "quantity"
	Note         = "note"
)

// Messages reported to the user, one per failed check.
const (
	MsgCustomerName = "Customer name cannot be empty"
	MsgEmail        = "Email is not valid"
	MsgProductName  = "Product name cannot be empty"
	MsgQuantity     = "Quantity must be an integer greater than 0"
)

// Draft is the raw, unvalidated input of one order submission.
type Draft struct {
	CustomerName string
	Email        string
	ProductName  string
	Quantity     string
	Note         string
}

// Source exposes the draft to the order form. Every field of a draft counts as submitted.
func (d Draft) Source() orderdesk.Source {
	return orderdesk.MapSource(map[string]string{
		CustomerName: d.CustomerName,
		Email:        d.Email,
		ProductName:  d.ProductName,
		Quantity:     d.Quantity,
		Note:         d.Note,
	})
}

// NormalizeText strips leading and trailing whitespace. Inner whitespace is kept.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// Words follow Unicode word segmentation, so "o'neil" becomes "O'neil".
func TitleCase(s string) string {
	// a Caser keeps state, so it is not shared between calls
	return cases.Title(language.Und).String(s)
}

// LowerCase lower-cases s.
func LowerCase(s string) string {
	return strings.ToLower(s)
}

// IsValidEmail is a permissive syntactic check for local@domain.tld.
func IsValidEmail(s string) bool {
	return constraint.IsEmail(s)
}

// orderForm runs the checks in a fixed order: customer name, email, product name, quantity.
var orderForm = orderdesk.WithFields(
	orderdesk.NewField[string](CustomerName, constraint.NotBlank()).
		Normalize(NormalizeText, TitleCase).
		Message(MsgCustomerName),
	orderdesk.NewField[string](Email, constraint.Email()).
		Normalize(NormalizeText, LowerCase).
		Message(MsgEmail),
	orderdesk.NewField[string](ProductName, constraint.NotBlank()).
		Normalize(NormalizeText, TitleCase).
		Message(MsgProductName),
	orderdesk.NewField[int](Quantity, constraint.Gt(0)).
		Normalize(NormalizeText).
		Message(MsgQuantity),
	orderdesk.NewField[string](Note).
		Normalize(NormalizeText).
		Optional(),
)

// Validate normalizes and checks a draft. The error, if any, is an
// *orderdesk.ValidationError listing every failed check.
func Validate(draft Draft) mo.Result[entity.Order] {
	return ValidateSource(draft.Source())
}

// ValidateSource normalizes and checks the order fields found in src.
func ValidateSource(src orderdesk.Source) mo.Result[entity.Order] {
	rs := orderForm.Validate(src)
	if rs.IsError() {
		return mo.Err[entity.Order](rs.Error())
	}
	values := rs.MustGet()
	return mo.Ok(entity.Order{
		CustomerName: values.String(CustomerName).MustGet(),
		Email:        values.String(Email).MustGet(),
		ProductName:  values.String(ProductName).MustGet(),
		Quantity:     values.Int(Quantity).MustGet(),
		Note:         values.String(Note).OrElse(""),
	})
}

// Messages returns the user facing messages carried by a validation failure,
// or nil when err is not one.
func Messages(err error) []string {
	if ve, ok := orderdesk.AsValidationError(err); ok {
		return ve.Messages()
	}
	return nil
}
