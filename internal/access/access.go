// Package access decides whether an actor may perform an action on a feature.
// Roles grant capabilities through a fixed table; individual actors can carry
// extra grants issued upstream.
package access

import (
	"slices"
	"strings"
)

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleInventoryManager Role = "inventory_manager"
	RoleSalesManager     Role = "sales_manager"
	RoleStaff            Role = "staff"
)

type Feature string

const (
	FeatureItems          Feature = "items"
	FeatureMovements      Feature = "stock_movements"
	FeatureAlerts         Feature = "alerts"
	FeaturePurchaseBills  Feature = "purchase_bills"
	FeatureSalesInvoices  Feature = "sales_invoices"
	FeatureSalesReturns   Feature = "sales_returns"
	FeaturePurchaseOrders Feature = "purchase_orders"
	FeatureSalesOrders    Feature = "sales_orders"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionResolve Action = "resolve"
	ActionStatus  Action = "status"
)

type capability struct {
	feature Feature
	action  Action
}

var (
	everyone    = []Role{RoleAdmin, RoleInventoryManager, RoleSalesManager, RoleStaff}
	adminOnly   = []Role{RoleAdmin}
	stockTeam   = []Role{RoleAdmin, RoleInventoryManager}
	salesTeam   = []Role{RoleAdmin, RoleSalesManager}
	ordersStaff = []Role{RoleAdmin, RoleStaff}
)

var table = map[capability][]Role{
	{FeatureItems, ActionRead}:   everyone,
	{FeatureItems, ActionWrite}:  adminOnly,
	{FeatureItems, ActionDelete}: adminOnly,

	{FeatureMovements, ActionRead}:  everyone,
	{FeatureMovements, ActionWrite}: stockTeam,

	{FeatureAlerts, ActionRead}:    {RoleAdmin, RoleInventoryManager, RoleStaff},
	{FeatureAlerts, ActionResolve}: stockTeam,
	{FeatureAlerts, ActionDelete}:  adminOnly,

	{FeaturePurchaseBills, ActionRead}:   stockTeam,
	{FeaturePurchaseBills, ActionWrite}:  stockTeam,
	{FeaturePurchaseBills, ActionDelete}: adminOnly,

	{FeatureSalesInvoices, ActionRead}:   salesTeam,
	{FeatureSalesInvoices, ActionWrite}:  salesTeam,
	{FeatureSalesInvoices, ActionDelete}: adminOnly,

	{FeatureSalesReturns, ActionRead}:   salesTeam,
	{FeatureSalesReturns, ActionWrite}:  salesTeam,
	{FeatureSalesReturns, ActionDelete}: adminOnly,

	{FeaturePurchaseOrders, ActionRead}:   {RoleAdmin, RoleInventoryManager, RoleStaff},
	{FeaturePurchaseOrders, ActionWrite}:  ordersStaff,
	{FeaturePurchaseOrders, ActionStatus}: adminOnly,
	{FeaturePurchaseOrders, ActionDelete}: adminOnly,

	{FeatureSalesOrders, ActionRead}:   everyone,
	{FeatureSalesOrders, ActionWrite}:  {RoleAdmin, RoleStaff, RoleSalesManager},
	{FeatureSalesOrders, ActionStatus}: adminOnly,
	{FeatureSalesOrders, ActionDelete}: adminOnly,
}

type Actor struct {
	ID     int64
	Role   Role
	Grants []string
}

func (a Actor) Can(feature Feature, action Action) bool {
	if slices.Contains(table[capability{feature, action}], a.Role) {
		return true
	}
	want := string(feature) + ":" + string(action)
	return slices.Contains(a.Grants, want)
}

// ParseGrants splits a "feature:action,feature:action" list, dropping blanks.
func ParseGrants(raw string) []string {
	var grants []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || !strings.Contains(part, ":") {
			continue
		}
		grants = append(grants, part)
	}
	return grants
}

func ValidRole(r Role) bool {
	return slices.Contains(everyone, r)
}
