package services

import (
	"regexp"
	"strings"
)

// The classifiers below are ordered rule tables evaluated first-match-wins.
// Keeping them as data means a rule can be unit-tested on its own and new
// rules slot in without touching control flow. The product's user base is
// Brazilian, so the vocabulary is Portuguese.

// Opener-type buckets.
const (
	OpenerOiSimples          = "oi_simples"
	OpenerOiPerguntaGenerica = "oi_pergunta_generica"
	OpenerPergunta           = "pergunta"
	OpenerDescontraido       = "descontraido"
	OpenerPersonalizado      = "personalizado"
	OpenerElogio             = "elogio"
	OpenerElaborado          = "elaborado"
	OpenerOutro              = "outro"
)

type openerRule struct {
	label string
	match func(text string) bool
}

var (
	reExactGreeting   = regexp.MustCompile(`^(oi+|ol[aá]|oie|opa|e\s*a[ií]|hey|hi)[\s!.,]*$`)
	reLeadingGreeting = regexp.MustCompile(`^(oi+|ol[aá]|oie|opa|e\s*a[ií]|hey|hi)\b`)
	reGenericQuestion = regexp.MustCompile(`tudo\s*(bem|bom)|como\s*(vai|voc[eê]\s*t[aá]|c[eê]\s*t[aá])|beleza|suave|de\s*boa`)
	reLaughter        = regexp.MustCompile(`k{3,}|haha|hehe|rsrs|kakaka`)
	reProfileRef      = regexp.MustCompile(`sua\s*(foto|bio)|suas\s*fotos|seu\s*perfil|vi\s*(que\s*(voc[eê]|vc)|no\s*seu|na\s*sua)`)
	reCompliment      = regexp.MustCompile(`\b(linda|lindo|bonita|bonito|gata|gato|maravilhosa|maravilhoso|perfeita|perfeito|princesa)\b`)
)

// openerRules is evaluated top to bottom; the first matching rule names the
// bucket. Order matters: "Oi, tudo bem?" must land on the greeting+generic-
// question bucket, never on the bare question-mark one.
var openerRules = []openerRule{
	{OpenerOiSimples, func(t string) bool { return reExactGreeting.MatchString(t) }},
	{OpenerOiPerguntaGenerica, func(t string) bool {
		return reLeadingGreeting.MatchString(t) && reGenericQuestion.MatchString(t)
	}},
	{OpenerPergunta, func(t string) bool { return strings.Contains(t, "?") }},
	{OpenerDescontraido, func(t string) bool { return reLaughter.MatchString(t) }},
	{OpenerPersonalizado, func(t string) bool { return reProfileRef.MatchString(t) }},
	{OpenerElogio, func(t string) bool { return reCompliment.MatchString(t) }},
	{OpenerElaborado, func(t string) bool { return len([]rune(t)) > 100 }},
}

// ClassifyOpener assigns a coarse opener-type bucket to a first message.
func ClassifyOpener(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range openerRules {
		if rule.match(normalized) {
			return rule.label
		}
	}
	return OpenerOutro
}

type strategyRule struct {
	tag string
	re  *regexp.Regexp
}

// Topic rules run before tone rules so a themed message is tracked under
// its topic rather than its mood.
var strategyTopicRules = []strategyRule{
	{"topico_viagem", regexp.MustCompile(`viagem|viajar|praia|trilha|mochil[aã]o`)},
	{"topico_musica", regexp.MustCompile(`m[uú]sica|show|banda|festival|playlist`)},
	{"topico_fitness", regexp.MustCompile(`academia|treino|crossfit|corrida|muay`)},
	{"topico_comida", regexp.MustCompile(`comida|restaurante|pizza|hamb[uú]rguer|cerveja|caf[eé]`)},
	{"topico_pets", regexp.MustCompile(`cachorro|gatinho|pet\b|doguinho`)},
	{"topico_carreira", regexp.MustCompile(`trabalho|faculdade|carreira|estudo|faz\s*o\s*qu[eê]`)},
}

var strategyToneRules = []strategyRule{
	{"geral_descontraido", reLaughter},
	{"geral_elogio", reCompliment},
	{"geral_curioso", regexp.MustCompile(`\?`)},
}

// StrategyTagDefault labels messages no rule claims.
const StrategyTagDefault = "geral_neutro"

// ExtractStrategyTag assigns a coarse topic- or tone-based strategy tag,
// first match wins.
func ExtractStrategyTag(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range strategyTopicRules {
		if rule.re.MatchString(normalized) {
			return rule.tag
		}
	}
	for _, rule := range strategyToneRules {
		if rule.re.MatchString(normalized) {
			return rule.tag
		}
	}
	return StrategyTagDefault
}

type anonymizeRule struct {
	re   *regexp.Regexp
	repl string
}

// anonymizeRules strip reporter-identifying content before a message is
// persisted as crowd evidence: self-introductions, phone-shaped substrings
// and @handle mentions.
var anonymizeRules = []anonymizeRule{
	{regexp.MustCompile(`(?i)\b(me chamo|meu nome [eé]|aqui [eé] [oa]|eu sou [oa]|sou [oa])\s+\p{L}+`), ""},
	{regexp.MustCompile(`\(?\d{2}\)?\s*9?\s*\d{4}[-.\s]?\d{4}`), "[telefone]"},
	{regexp.MustCompile(`@[A-Za-z0-9_.]+`), "[perfil]"},
}

var reSpaces = regexp.MustCompile(`\s+`)

// AnonymizeMessage applies the anonymization rules in order and collapses
// the leftover whitespace.
func AnonymizeMessage(text string) string {
	out := text
	for _, rule := range anonymizeRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return strings.TrimSpace(reSpaces.ReplaceAllString(out, " "))
}
