package core

// transitions is the complete invoice state graph. Every edge is named by the action
// that performs it; an edge absent from this table is illegal.
var transitions = map[InvoiceStatus]map[InvoiceStatus]string{
	InvoiceDraft: {
		InvoiceSubmitted: "submit",
		InvoiceRejected:  "reject",
	},
	InvoiceSubmitted: {
		InvoiceAccepted: "accept",
		InvoiceRejected: "reject",
	},
	InvoiceAccepted: {
		InvoicePreparing: "prepare",
	},
	InvoicePreparing: {
		InvoiceAmountEntered: "enterAmount",
	},
	InvoiceAmountEntered: {
		InvoiceDeliveredConfirmed: "confirmDelivery",
	},
}

// CanTransition reports whether from → to is an edge of the workflow graph.
func CanTransition(from, to InvoiceStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// TransitionAction returns the action name of the edge from → to.
func TransitionAction(from, to InvoiceStatus) (string, bool) {
	action, ok := transitions[from][to]
	return action, ok
}

// NextStatuses lists the statuses reachable in one step from s.
func NextStatuses(s InvoiceStatus) []InvoiceStatus {
	var next []InvoiceStatus
	for _, candidate := range AllInvoiceStatuses {
		if CanTransition(s, candidate) {
			next = append(next, candidate)
		}
	}
	return next
}

// authorizeTransition checks the role gate for action on inv.
// submit is open to shop staff and to the customer who owns the invoice; every other
// action needs ADMIN or STAFF.
func authorizeTransition(op string, a Actor, inv *Invoice, action string) error {
	if a.Role == RoleCustomer {
		if action == "submit" && a.ID == inv.CustomerID {
			return nil
		}
		return Permissionf(op, "role %s may not %s invoice %s", a.Role, action, inv.InvoiceNumber)
	}
	if !a.isShopStaff() {
		return Permissionf(op, "role %s may not %s invoices", a.Role, action)
	}
	if !a.canAccessShop(inv.ShopID) {
		return Permissionf(op, "invoice %s belongs to another shop", inv.InvoiceNumber)
	}
	return nil
}

// initialStatus is SUBMITTED for customer-originated invoices and DRAFT otherwise.
func initialStatus(a Actor) InvoiceStatus {
	if a.Role == RoleCustomer {
		return InvoiceSubmitted
	}
	return InvoiceDraft
}
