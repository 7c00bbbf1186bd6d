package strategy

import (
	"testing"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSpec_Kinds(t *testing.T) {
	s, err := FromSpec(Spec{Name: "a", Kind: KindSimple, SmallWindow: 5, BigWindow: 20, Order: 1})
	require.NoError(t, err)
	assert.Equal(t, Simple{Small: 5, Big: 20}, s.(*CrossoverStrategy).Averaging())

	s, err = FromSpec(Spec{Name: "b", Kind: KindLinear, SmallWindow: 5, BigWindow: 20, Order: 1, Greedy: true})
	require.NoError(t, err)
	assert.True(t, s.(*CrossoverStrategy).Params().Greedy)

	s, err = FromSpec(Spec{Kind: KindExponential, SmallDecay: d("0.3"), BigDecay: d("0.05"), Order: 3})
	require.NoError(t, err)
	assert.Equal(t, "ewma-0.3-0.05-o3-p0", s.Name())
}

func TestFromSpec_Invalid(t *testing.T) {
	cases := map[string]Spec{
		"bot.kind":         {Kind: "macd", Order: 1},
		"bot.small_window": {Kind: KindSimple, SmallWindow: 0, BigWindow: 5, Order: 1},
		"bot.big_window":   {Kind: KindSimple, SmallWindow: 5, BigWindow: 5, Order: 1},
		"bot.small_decay":  {Kind: KindExponential, SmallDecay: d("1.5"), BigDecay: d("0.1"), Order: 1},
		"bot.big_decay":    {Kind: KindExponential, SmallDecay: d("0.5"), Order: 1},
		"bot.order":        {Kind: KindSimple, SmallWindow: 1, BigWindow: 2},
		"bot.min_profit":   {Kind: KindSimple, SmallWindow: 1, BigWindow: 2, Order: 1, MinProfit: d("-0.1")},
		"bot.limit_offset": {Kind: KindSimple, SmallWindow: 1, BigWindow: 2, Order: 1, LimitOffset: d("1")},
	}
	for field, spec := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := FromSpec(spec)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, field, cfgErr.Field)
		})
	}
}

func TestLoad_DuplicateNames(t *testing.T) {
	spec := Spec{Name: "same", Kind: KindSimple, SmallWindow: 1, BigWindow: 2, Order: 1}
	_, err := Load([]Spec{spec, spec})
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRegistry_AllSortedByName(t *testing.T) {
	r, err := Load([]Spec{
		{Name: "zeta", Kind: KindSimple, SmallWindow: 1, BigWindow: 2, Order: 1},
		{Name: "alpha", Kind: KindLinear, SmallWindow: 1, BigWindow: 2, Order: 1},
	})
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name())
	_, ok := r.Get("zeta")
	assert.True(t, ok)
}
