package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/fincaops/incident-service/internal/domain"
)

// keywordClassifier scores Spanish keyword patterns per category and
// urgency. It is the standing fallback when no external classifier is
// configured and keeps intake functional offline.
type keywordClassifier struct{}

// NewKeywordClassifier creates the keyword-based classifier.
func NewKeywordClassifier() Classifier {
	return &keywordClassifier{}
}

var categoryPatterns = map[domain.Category][]*regexp.Regexp{
	domain.CategoryWater: compileAll(
		`\bagua\b`, `\bfuga\b`, `\btuber[ií]as?\b`, `\binundaci[oó]n\b`,
		`\bhumedad\b`, `\bgoteras?\b`, `\bcañer[ií]as?\b`, `\batasco\b`,
		`\bfontaner[oí]a\b`, `\bdesag[üu]e\b`, `\bcisterna\b`, `\bgrifo\b`, `\blavabo\b`,
	),
	domain.CategoryElevator: compileAll(
		`\bascensor(es)?\b`, `\belevador\b`, `\batrapado\b`, `\bencerrado\b`,
		`\bno funciona.*ascensor\b`, `\bascensor.*no funciona\b`,
		`\bbot[oó]n.*ascensor\b`, `\bpuerta.*ascensor\b`,
	),
	domain.CategoryElectricity: compileAll(
		`\belectricidad\b`, `\bcorriente\b`, `\bluz\b`, `\bapag[oó]n\b`,
		`\bcorte de luz\b`, `\benchufe\b`, `\binterruptor\b`,
		`\bcuadro el[eé]ctrico\b`, `\bcables?\b`, `\bcortocircuito\b`,
		`\bfusible\b`, `\bdiferencial\b`,
	),
	domain.CategoryGarageDoor: compileAll(
		`\bgaraje\b`, `\bpuerta.*garaje\b`, `\bcancela\b`, `\bport[oó]n\b`,
		`\bbarrera\b`, `\bmando\b`, `\bmotor.*puerta\b`, `\bpuerta.*autom[aá]tica\b`,
	),
	domain.CategoryCleaning: compileAll(
		`\blimpieza\b`, `\blimpiar\b`, `\bsuciedad\b`, `\bbasura\b`,
		`\bportal\b`, `\bescalera\b`, `\bpintada\b`, `\bgrafiti\b`, `\bmal olor\b`, `\bolores?\b`,
	),
	domain.CategorySecurity: compileAll(
		`\bseguridad\b`, `\brobo\b`, `\bvandalismo\b`, `\bintrusi[oó]n\b`,
		`\balarma\b`, `\bc[aá]mara\b`, `\bvideoportero\b`, `\bcerradura\b`,
		`\bllave\b`, `\bpuerta.*entrada\b`,
	),
}

var urgentPatterns = compileAll(
	`\burgente\b`, `\bemergencia\b`, `\binmediato\b`, `\bahora mismo\b`,
	`\bcr[ií]tic[oa]\b`, `\bgrave\b`, `\bpeligro\b`, `\binundando\b`,
	`\bsin luz\b`, `\batrapado\b`, `\bencerrado\b`, `\bfuego\b`, `\bincendio\b`, `\bhumo\b`,
)

var highPatterns = compileAll(
	`\bimportante\b`, `\bpronto\b`, `\br[aá]pido\b`, `\bcuanto antes\b`,
	`\bno puede esperar\b`, `\bmuy necesario\b`,
)

var lowPatterns = compileAll(
	`\bcuando pued[ae]s?\b`, `\bsin prisa\b`, `\bcuando sea\b`,
	`\bno (es )?urgente\b`, `\bpequeñ[oa]\b`, `\bmenor\b`, `\bleve\b`,
)

var statusPatterns = compileAll(
	`\bestado\b`, `\bc[oó]mo va\b`, `\bqu[eé] pasa con\b`, `\bnovedades\b`,
	`\bcu[aá]ndo (vienen|viene|arreglan)\b`,
)

// newIncidentPhrases force a new ticket even inside the continuation
// window. Any of these anywhere in the message counts.
var newIncidentPhrases = []string{
	"nueva incidencia", "nuevo problema", "otra incidencia", "otro problema",
	"problema distinto", "incidencia distinta", "problema diferente",
	"reportar nueva", "tengo otro problema", "quiero reportar", "nueva consulta",
	"tengo una nueva", "tengo un nuevo", "hay una nueva", "hay un nuevo",
	"reportar incidencia", "nueva avería", "nueva averia", "otra avería", "otra averia",
	"además tengo", "aparte de eso", "también tengo", "otro asunto", "otro tema",
}

// roomNames are rejected as unit values: "baño" is a room, not a door.
var roomNames = []string{
	"baño", "bano", "cocina", "salón", "salon", "dormitorio", "habitación",
	"habitacion", "terraza", "balcón", "balcon", "pasillo", "comedor",
	"aseo", "lavabo", "despensa", "trastero",
}

var categoryDefaultUrgency = map[domain.Category]domain.Urgency{
	domain.CategoryElevator:    domain.UrgencyHigh,
	domain.CategoryWater:       domain.UrgencyHigh,
	domain.CategoryElectricity: domain.UrgencyHigh,
	domain.CategorySecurity:    domain.UrgencyHigh,
	domain.CategoryGarageDoor:  domain.UrgencyMedium,
	domain.CategoryCleaning:    domain.UrgencyLow,
	domain.CategoryOther:       domain.UrgencyMedium,
}

func (c *keywordClassifier) Classify(_ context.Context, text, priorContext string) (*Classification, error) {
	lower := strings.ToLower(text)

	category := detectCategory(lower)
	result := &Classification{
		Intent:     detectIntent(lower),
		Category:   category,
		Urgency:    detectUrgency(lower, category),
		Summary:    Summarize(text),
		Confidence: 0.5,
	}

	if priorContext != "" {
		same := sameProblem(lower, priorContext)
		result.SameAsContext = &same
	}
	return result, nil
}

func detectCategory(lower string) domain.Category {
	best := domain.CategoryOther
	bestScore := 0
	for category, patterns := range categoryPatterns {
		score := 0
		for _, p := range patterns {
			score += len(p.FindAllStringIndex(lower, -1))
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	return best
}

func detectUrgency(lower string, category domain.Category) domain.Urgency {
	if matchesAny(lower, urgentPatterns) {
		return domain.UrgencyUrgent
	}
	if matchesAny(lower, highPatterns) {
		return domain.UrgencyHigh
	}
	if matchesAny(lower, lowPatterns) {
		return domain.UrgencyLow
	}
	if def, ok := categoryDefaultUrgency[category]; ok {
		return def
	}
	return domain.UrgencyMedium
}

func detectIntent(lower string) Intent {
	if ContainsNewIncidentPhrase(lower) {
		return IntentNewIncident
	}
	if matchesAny(lower, statusPatterns) {
		return IntentCheckStatus
	}
	return IntentNewIncident
}

// sameProblem approximates a same/different judgement: a different detected
// category than the prior summary signals a different problem.
func sameProblem(lower, priorContext string) bool {
	newCategory := detectCategory(lower)
	priorCategory := detectCategory(strings.ToLower(priorContext))
	if newCategory == domain.CategoryOther || priorCategory == domain.CategoryOther {
		return true
	}
	return newCategory == priorCategory
}

// ContainsNewIncidentPhrase reports whether the text explicitly signals a
// new, independent report. The resolver honors this regardless of window.
func ContainsNewIncidentPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range newIncidentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsValidUnit rejects room names masquerading as floor/door values.
func IsValidUnit(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, room := range roomNames {
		if strings.Contains(lower, room) {
			return false
		}
	}
	return true
}

// Summarize derives a short subject line from free text.
func Summarize(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	runes := []rune(line)
	if len(runes) > 120 {
		return string(runes[:117]) + "..."
	}
	return line
}

func matchesAny(lower string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func compileAll(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		compiled = append(compiled, regexp.MustCompile(expr))
	}
	return compiled
}
