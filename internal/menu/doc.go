// Package menu provides the service menu users browse before asking for an
// operator.
//
// The menu is read-only at runtime. It is built from two documents in the
// same ConfigStore as the dialogs:
//
//	buttons: {
//	  "main_menu": [["Residence permit", "Contracts"], ["Contacts"]],
//	  "contracts": [["Rental agreement"], ["Car sale"]]
//	}
//
//	texts: {
//	  "welcome": "Hello, {name}! Pick a service.",
//	  "service_contracts": "We prepare these contracts:",
//	  "service_rental_agreement": "Bring both passports."
//	}
//
// A label's sub-entries live under its Slug. The labels a user passes through
// become the dialog's button path.
package menu
