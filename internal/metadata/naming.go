package metadata

import (
	"github.com/jinzhu/inflection"
	"github.com/stoewer/go-strcase"
)

// Naming converts between internal model names and the names used on the
// wire and in the database.
type Naming interface {
	WireType(modelName string) string
	ModelName(wireType string) string
	WireAttr(attr string) string
	AttrName(wireKey string) string
	Column(attr string) string
}

// JSONAPINaming dasherizes and pluralizes types ("jobTitle" -> "job-titles")
// and dasherizes attribute keys ("firstName" -> "first-name").
type JSONAPINaming struct{}

func (JSONAPINaming) WireType(modelName string) string {
	return inflection.Plural(strcase.KebabCase(modelName))
}

func (JSONAPINaming) ModelName(wireType string) string {
	return strcase.LowerCamelCase(inflection.Singular(wireType))
}

func (JSONAPINaming) WireAttr(attr string) string {
	return strcase.KebabCase(attr)
}

func (JSONAPINaming) AttrName(wireKey string) string {
	return strcase.LowerCamelCase(wireKey)
}

func (JSONAPINaming) Column(attr string) string {
	return strcase.SnakeCase(attr)
}
