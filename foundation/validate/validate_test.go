package validate_test

import (
	"testing"

	"github.com/ardanlabs/byob/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type request struct {
	Account string `json:"account" validate:"required"`
	Amount  int64  `json:"amount" validate:"gte=0"`
}

func Test_Check(t *testing.T) {
	t.Log("Given the need to validate request models.")
	{
		if err := validate.Check(request{Account: "0x01", Amount: 10}); err != nil {
			t.Fatalf("\t%s\tShould accept a valid model: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept a valid model.", success)

		err := validate.Check(request{Amount: -1})
		if !validate.IsFieldErrors(err) {
			t.Fatalf("\t%s\tShould get field errors: %v", failed, err)
		}

		fields := validate.GetFieldErrors(err).Fields()
		if _, exists := fields["account"]; !exists {
			t.Fatalf("\t%s\tShould name the field by its json tag, got %v", failed, fields)
		}
		if _, exists := fields["amount"]; !exists {
			t.Fatalf("\t%s\tShould report every failed field, got %v", failed, fields)
		}
		t.Logf("\t%s\tShould report every failed field by its json tag.", success)
	}
}
