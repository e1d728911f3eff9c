package domain

import "fmt"

// AlertFor builds the alert an item at or below its reorder level should
// carry. ok is false when the item is above the level.
func AlertFor(item Item) (alert Alert, ok bool) {
	if !item.IsLowStock() {
		return Alert{}, false
	}
	alert = Alert{ItemID: item.ID, ItemName: item.Name}
	if item.CurrentStock == 0 {
		alert.Severity = SeverityCritical
		alert.Message = fmt.Sprintf("%s is out of stock!", item.Name)
	} else {
		alert.Severity = SeverityLow
		alert.Message = fmt.Sprintf("%s stock is low (%d %s remaining)", item.Name, item.CurrentStock, item.Unit)
	}
	return alert, true
}
