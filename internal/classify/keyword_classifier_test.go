package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fincaops/incident-service/internal/domain"
)

func TestDetectCategory(t *testing.T) {
	cases := []struct {
		text string
		want domain.Category
	}{
		{"hay una fuga de agua en el baño", domain.CategoryWater},
		{"el ascensor no funciona desde ayer", domain.CategoryElevator},
		{"se ha ido la luz y no tenemos corriente", domain.CategoryElectricity},
		{"la puerta del garaje no abre con el mando", domain.CategoryGarageDoor},
		{"hay mucha basura en la escalera", domain.CategoryCleaning},
		{"la cerradura del portal está forzada, posible robo", domain.CategorySecurity},
		{"tengo una consulta general", domain.CategoryOther},
	}
	classifier := NewKeywordClassifier()
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			result, err := classifier.Classify(context.Background(), tc.text, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Category)
		})
	}
}

func TestDetectUrgency(t *testing.T) {
	cases := []struct {
		text string
		want domain.Urgency
	}{
		{"urgente, se está inundando el garaje", domain.UrgencyUrgent},
		{"hay alguien atrapado en el ascensor", domain.UrgencyUrgent},
		{"es importante, arreglenlo cuanto antes", domain.UrgencyHigh},
		{"sin prisa, una pintada pequeña en el portal", domain.UrgencyLow},
		{"la puerta del garaje hace ruido", domain.UrgencyMedium},
	}
	classifier := NewKeywordClassifier()
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			result, err := classifier.Classify(context.Background(), tc.text, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Urgency)
		})
	}
}

func TestCategoryDefaultUrgency(t *testing.T) {
	classifier := NewKeywordClassifier()
	result, err := classifier.Classify(context.Background(), "hay una fuga de agua en la tubería", "")
	require.NoError(t, err)
	assert.Equal(t, domain.UrgencyHigh, result.Urgency)
}

func TestDetectStatusIntent(t *testing.T) {
	classifier := NewKeywordClassifier()
	result, err := classifier.Classify(context.Background(), "hola, ¿hay novedades de mi incidencia?", "")
	require.NoError(t, err)
	assert.Equal(t, IntentCheckStatus, result.Intent)
}

func TestSameAsContextOnlyWithPriorContext(t *testing.T) {
	classifier := NewKeywordClassifier()

	result, err := classifier.Classify(context.Background(), "sigue goteando", "")
	require.NoError(t, err)
	assert.Nil(t, result.SameAsContext)

	result, err = classifier.Classify(context.Background(), "sigue saliendo agua", "Fuga de agua en el baño")
	require.NoError(t, err)
	require.NotNil(t, result.SameAsContext)
	assert.True(t, *result.SameAsContext)

	result, err = classifier.Classify(context.Background(), "el ascensor no funciona", "Fuga de agua en el baño")
	require.NoError(t, err)
	require.NotNil(t, result.SameAsContext)
	assert.False(t, *result.SameAsContext)
}

func TestContainsNewIncidentPhrase(t *testing.T) {
	assert.True(t, ContainsNewIncidentPhrase("esto es un problema distinto, el ascensor no funciona"))
	assert.True(t, ContainsNewIncidentPhrase("Además tengo otra incidencia que reportar"))
	assert.True(t, ContainsNewIncidentPhrase("quiero reportar una nueva avería"))
	assert.False(t, ContainsNewIncidentPhrase("sigue goteando el grifo"))
	assert.False(t, ContainsNewIncidentPhrase(""))
}

func TestIsValidUnitRejectsRoomNames(t *testing.T) {
	valid := []string{"3B", "2º izquierda", "bajo derecha", "ático"}
	for _, v := range valid {
		assert.Truef(t, IsValidUnit(v), "%q should be a valid unit", v)
	}
	invalid := []string{"", "  ", "baño", "la cocina", "el salón", "Habitación"}
	for _, v := range invalid {
		assert.Falsef(t, IsValidUnit(v), "%q should be rejected", v)
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "primera línea", Summarize("primera línea\nsegunda línea"))
	assert.Equal(t, "recortado", Summarize("  recortado  "))

	long := strings.Repeat("a", 200)
	got := Summarize(long)
	assert.Len(t, []rune(got), 120)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSummarizeBoundedForAnyInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		got := Summarize(text)
		if len([]rune(got)) > 120 {
			t.Fatalf("summary longer than 120 runes: %q", got)
		}
		if strings.ContainsRune(got, '\n') {
			t.Fatalf("summary spans lines: %q", got)
		}
	})
}
