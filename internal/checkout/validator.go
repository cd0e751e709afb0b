package checkout

// Validate checks the transaction-level preconditions before submission.
// Per-line stock and type rules were already enforced by the cart.
//
// Rental requirements are checked first so a rental without due date or
// customer is reported as such even when the cart is also empty.
func Validate(cart *Cart, c Context) error {
	if c.Type == TypeRental && (c.DueDate == nil || c.Customer == nil) {
		return ErrRentalRequirements
	}
	if cart == nil || cart.Len() == 0 {
		return ErrEmptyCart
	}
	return nil
}
