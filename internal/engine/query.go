package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"orgchart/internal/metadata"
	"orgchart/internal/store"
)

type QueryPlan struct {
	Entity   *metadata.Entity
	Filters  []WhereClause
	Sorts    []OrderClause
	Page     int
	PerPage  int
	Includes []string
}

type WhereClause struct {
	Column   string
	Operator string
	Value    any
}

type OrderClause struct {
	Column string
	Dir    string // ASC or DESC
}

type QueryResult struct {
	SQL    string
	Params []any
}

// ParseQueryParams parses list query parameters into a QueryPlan.
// Filters name attributes or to-one relationships in wire form:
// filter[last-name]=Doe, filter[company]=c1, filter[username.in]=a,b.
func ParseQueryParams(c *fiber.Ctx, entity *metadata.Entity, reg *metadata.Registry) (*QueryPlan, error) {
	naming := reg.Naming()
	plan := &QueryPlan{
		Entity:  entity,
		Page:    1,
		PerPage: 25,
	}

	for key, val := range c.Queries() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		inner := key[7 : len(key)-1] // extract between [ and ]
		name, op := parseFilterKey(inner)

		column, err := filterColumn(reg, entity, naming.AttrName(name))
		if err != nil {
			return nil, err
		}
		plan.Filters = append(plan.Filters, WhereClause{
			Column:   column,
			Operator: op,
			Value:    coerceValue(val, op),
		})
	}

	// Parse sort: sort=-last-name,first-name
	if sortParam := c.Query("sort"); sortParam != "" {
		for _, part := range strings.Split(sortParam, ",") {
			part = strings.TrimSpace(part)
			dir := "ASC"
			if strings.HasPrefix(part, "-") {
				dir = "DESC"
				part = part[1:]
			}
			attr := naming.AttrName(part)
			if !entity.HasField(attr) {
				return nil, &AppError{
					Code:    "UNKNOWN_FIELD",
					Status:  400,
					Message: fmt.Sprintf("Unknown sort field: %s", part),
				}
			}
			plan.Sorts = append(plan.Sorts, OrderClause{Column: naming.Column(attr), Dir: dir})
		}
	}

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			plan.Page = v
		}
	}
	if pp := c.Query("per_page"); pp != "" {
		if v, err := strconv.Atoi(pp); err == nil && v > 0 {
			plan.PerPage = min(v, 100)
		}
	}

	plan.Includes = parseIncludes(c.Query("include"))
	return plan, nil
}

func filterColumn(reg *metadata.Registry, entity *metadata.Entity, name string) (string, error) {
	if entity.HasField(name) {
		return reg.Naming().Column(name), nil
	}
	if rel := entity.GetRelationship(name); rel != nil && rel.IsToOne() {
		return rel.ForeignKey(), nil
	}
	return "", &AppError{
		Code:    "UNKNOWN_FIELD",
		Status:  400,
		Message: fmt.Sprintf("Unknown filter field: %s", name),
	}
}

// BuildSelectSQL builds a parameterized SELECT statement from the query plan.
func BuildSelectSQL(dialect store.Dialect, reg *metadata.Registry, plan *QueryPlan) QueryResult {
	pb := dialect.NewParamBuilder()
	entity := plan.Entity

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columnsOf(reg, entity), ", "), entity.Table)
	if where := buildWhere(plan.Filters, pb); where != "" {
		sql += " WHERE " + where
	}

	orderParts := make([]string, 0, len(plan.Sorts)+1)
	for _, s := range plan.Sorts {
		orderParts = append(orderParts, s.Column+" "+s.Dir)
	}
	orderParts = append(orderParts, pkColumn(reg, entity))
	sql += " ORDER BY " + strings.Join(orderParts, ", ")

	limit := pb.Add(plan.PerPage)
	offset := pb.Add((plan.Page - 1) * plan.PerPage)
	sql += fmt.Sprintf(" LIMIT %s OFFSET %s", limit, offset)

	return QueryResult{SQL: sql, Params: pb.Params()}
}

// BuildCountSQL builds a COUNT query with the same filters as the select.
func BuildCountSQL(dialect store.Dialect, plan *QueryPlan) QueryResult {
	pb := dialect.NewParamBuilder()

	sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", plan.Entity.Table)
	if where := buildWhere(plan.Filters, pb); where != "" {
		sql += " WHERE " + where
	}
	return QueryResult{SQL: sql, Params: pb.Params()}
}

func buildWhere(filters []WhereClause, pb store.ParamBuilder) string {
	var where []string
	for _, f := range filters {
		where = append(where, buildWhereClause(f, pb))
	}
	return strings.Join(where, " AND ")
}

func buildWhereClause(f WhereClause, pb store.ParamBuilder) string {
	switch f.Operator {
	case "neq":
		return fmt.Sprintf("%s != %s", f.Column, pb.Add(f.Value))
	case "in":
		values, _ := f.Value.([]any)
		return store.InExpr(f.Column, pb, values)
	case "like":
		return fmt.Sprintf("%s LIKE %s", f.Column, pb.Add(f.Value))
	case "null":
		return fmt.Sprintf("%s IS NULL", f.Column)
	default:
		return fmt.Sprintf("%s = %s", f.Column, pb.Add(f.Value))
	}
}

// parseFilterKey splits "username.in" into ("username", "in") or "name" into ("name", "eq").
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, "eq"
}

func coerceValue(val string, op string) any {
	if op != "in" {
		return val
	}
	parts := strings.Split(val, ",")
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = strings.TrimSpace(p)
	}
	return values
}
