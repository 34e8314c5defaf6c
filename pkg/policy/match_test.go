package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		match   bool
	}{
		{"*", "com.anything", true},
		{"com.bank", "com.bank", true},
		{"com.bank", "com.bank.lite", false},
		{"com.wallet.*", "com.wallet.pay", true},
		{"com.wallet.*", "com.wallet", false},
		{"com.wallet.*", "com.walletx.pay", false},
		{"*.bank", "com.bank", true},
		{"com.*.lite", "com.bank.lite", true},
		{"com.*.lite", "com.bank.full", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxcyyb", false},
		{"ab*ba", "aba", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, matchGlob(tt.pattern, tt.name))
		})
	}
}
