package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{
			name: "valid_sum_100",
			weights: Weights{
				"BTC":  decimal.NewFromInt(60),
				"ETH":  decimal.NewFromInt(30),
				"USDT": decimal.NewFromInt(10),
			},
		},
		{
			name: "fractional_sum_100",
			weights: Weights{
				"BTC":  mustDec("33.3"),
				"ETH":  mustDec("33.3"),
				"USDT": mustDec("33.4"),
			},
		},
		{
			name: "zero_weight_allowed",
			weights: Weights{
				"BTC":  decimal.NewFromInt(100),
				"DOGE": decimal.Zero,
			},
		},
		{
			name: "sum_99",
			weights: Weights{
				"BTC":  decimal.NewFromInt(50),
				"USDT": decimal.NewFromInt(49),
			},
			wantErr: true,
		},
		{
			name: "sum_101",
			weights: Weights{
				"BTC":  decimal.NewFromInt(51),
				"USDT": decimal.NewFromInt(50),
			},
			wantErr: true,
		},
		{
			name: "negative_weight",
			weights: Weights{
				"BTC":  decimal.NewFromInt(150),
				"USDT": decimal.NewFromInt(-50),
			},
			wantErr: true,
		},
		{
			name:    "empty",
			weights: Weights{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, IsConfig(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseWeights(t *testing.T) {
	weights, err := ParseWeights(map[string]string{
		"BTC":  "45",
		"ETH":  "20",
		"XMR":  "20",
		"USDT": "15",
	})
	require.NoError(t, err)
	require.True(t, weights.Target("BTC").Equal(decimal.NewFromInt(45)))
	require.True(t, weights.Target("USDT").Equal(decimal.NewFromInt(15)))
	require.Equal(t, []string{"BTC", "ETH", "USDT", "XMR"}, weights.Assets())
}

func TestParseWeightsInvalidNumber(t *testing.T) {
	_, err := ParseWeights(map[string]string{
		"BTC":  "forty",
		"USDT": "60",
	})
	require.Error(t, err)
	require.True(t, IsConfig(err))
}

func TestParseWeightsBadSum(t *testing.T) {
	_, err := ParseWeights(map[string]string{
		"BTC":  "45",
		"USDT": "15",
	})
	require.Error(t, err)
	require.True(t, IsConfig(err))
}

func TestWeightsClone(t *testing.T) {
	weights := Weights{
		"BTC":  decimal.NewFromInt(50),
		"USDT": decimal.NewFromInt(50),
	}

	clone := weights.Clone()
	clone["BTC"] = decimal.NewFromInt(10)

	require.True(t, weights.Target("BTC").Equal(decimal.NewFromInt(50)))
}
