package access

import "testing"

func TestRoleTable(t *testing.T) {
	cases := []struct {
		role    Role
		feature Feature
		action  Action
		want    bool
	}{
		{RoleStaff, FeatureItems, ActionRead, true},
		{RoleStaff, FeatureItems, ActionWrite, false},
		{RoleAdmin, FeatureItems, ActionWrite, true},
		{RoleInventoryManager, FeaturePurchaseBills, ActionWrite, true},
		{RoleInventoryManager, FeaturePurchaseBills, ActionDelete, false},
		{RoleSalesManager, FeaturePurchaseBills, ActionRead, false},
		{RoleSalesManager, FeatureSalesInvoices, ActionWrite, true},
		{RoleInventoryManager, FeatureSalesInvoices, ActionRead, false},
		{RoleSalesManager, FeatureSalesReturns, ActionWrite, true},
		{RoleStaff, FeatureAlerts, ActionRead, true},
		{RoleStaff, FeatureAlerts, ActionResolve, false},
		{RoleInventoryManager, FeatureAlerts, ActionResolve, true},
		{RoleSalesManager, FeatureAlerts, ActionRead, false},
		{RoleStaff, FeaturePurchaseOrders, ActionWrite, true},
		{RoleStaff, FeaturePurchaseOrders, ActionStatus, false},
		{RoleSalesManager, FeatureSalesOrders, ActionWrite, true},
		{RoleSalesManager, FeatureSalesOrders, ActionDelete, false},
		{RoleSalesManager, FeatureMovements, ActionRead, true},
		{Role("guest"), FeatureItems, ActionRead, false},
	}
	for _, tc := range cases {
		got := Actor{Role: tc.role}.Can(tc.feature, tc.action)
		if got != tc.want {
			t.Fatalf("%s %s:%s = %v, want %v", tc.role, tc.feature, tc.action, got, tc.want)
		}
	}
}

func TestGrantsExtendRole(t *testing.T) {
	actor := Actor{Role: RoleStaff, Grants: ParseGrants(" purchase_bills:write , ,bogus, SALES_INVOICES:read")}

	if len(actor.Grants) != 2 {
		t.Fatalf("expected 2 grants, got %v", actor.Grants)
	}
	if !actor.Can(FeaturePurchaseBills, ActionWrite) {
		t.Fatal("expected explicit grant to allow purchase_bills:write")
	}
	if !actor.Can(FeatureSalesInvoices, ActionRead) {
		t.Fatal("expected grants to be case-insensitive")
	}
	if actor.Can(FeaturePurchaseBills, ActionDelete) {
		t.Fatal("grant must not leak to other actions")
	}
}
