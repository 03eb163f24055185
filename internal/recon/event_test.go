package recon

import (
	"net/url"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want Event
	}{
		{
			name: "documented lowercase keys",
			form: url.Values{
				"txnid":       {"TXN-1"},
				"amount":      {"500.00"},
				"status":      {"success"},
				"email":       {"asha@example.com"},
				"firstname":   {"Asha"},
				"productinfo": {"Books"},
				"hash":        {"abc123"},
				"udf1":        {"cat-1"},
				"udf4":        {"don-abc"},
				"mihpayid":    {"403993715531"},
				"mode":        {"UPI"},
			},
			want: Event{
				DonationID:       "don-abc",
				TxnID:            "TXN-1",
				Amount:           "500.00",
				Status:           "success",
				Email:            "asha@example.com",
				Firstname:        "Asha",
				ProductInfo:      "Books",
				UDF:              [5]string{"cat-1", "", "", "don-abc", ""},
				Hash:             "abc123",
				GatewayPaymentID: "403993715531",
				Mode:             "UPI",
			},
		},
		{
			name: "bracketed udf and camel-cased keys",
			form: url.Values{
				"txnId":      {"TXN-2"},
				"Status":     {"failure"},
				"udf[4]":     {"don-def"},
				"udf[1]":     {"cat-2"},
				"bankRefNum": {"BR-77"},
				"firstName":  {"Ravi"},
			},
			want: Event{
				DonationID: "don-def",
				TxnID:      "TXN-2",
				Status:     "failure",
				Firstname:  "Ravi",
				UDF:        [5]string{"cat-2", "", "", "don-def", ""},
				BankRefNum: "BR-77",
			},
		},
		{
			name: "upper-cased keys",
			form: url.Values{
				"TXNID":  {"TXN-3"},
				"STATUS": {"cancelled"},
				"UDF4":   {"don-ghi"},
			},
			want: Event{
				DonationID: "don-ghi",
				TxnID:      "TXN-3",
				Status:     "cancelled",
				UDF:        [5]string{"", "", "", "don-ghi", ""},
			},
		},
		{
			name: "error message variants",
			form: url.Values{
				"txnid":         {"TXN-4"},
				"error_Message": {"Insufficient funds"},
				"error":         {"E101"},
			},
			want: Event{
				TxnID:     "TXN-4",
				ErrorText: "Insufficient funds",
			},
		},
		{
			name: "first present key wins over later variants",
			form: url.Values{
				"txnid": {"TXN-5"},
				"TxnID": {"ignored"},
				"udf4":  {"don-primary"},
				"UDF4":  {"don-shadow"},
			},
			want: Event{
				DonationID: "don-primary",
				TxnID:      "TXN-5",
				UDF:        [5]string{"", "", "", "don-primary", ""},
			},
		},
		{
			name: "empty value falls through to next variant",
			form: url.Values{
				"udf4": {""},
				"UDF4": {"don-fallback"},
			},
			want: Event{
				DonationID: "don-fallback",
				UDF:        [5]string{"", "", "", "don-fallback", ""},
			},
		},
		{
			name: "no donation reference",
			form: url.Values{
				"txnid":  {"TXN-6"},
				"status": {"success"},
			},
			want: Event{
				TxnID:  "TXN-6",
				Status: "success",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEvent(tt.form)
			if got != tt.want {
				t.Errorf("ParseEvent = %+v, want %+v", got, tt.want)
			}
		})
	}
}
