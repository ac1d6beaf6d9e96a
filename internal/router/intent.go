package router

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

type Intent string

const (
	IntentWeather   Intent = "weather"
	IntentNews      Intent = "news"
	IntentCurrency  Intent = "currency"
	IntentTime      Intent = "time"
	IntentTranslate Intent = "translate"
	IntentJoke      Intent = "joke"
	IntentQuote     Intent = "quote"
	IntentSearch    Intent = "search"
	IntentGreeting  Intent = "greeting"
	IntentHelp      Intent = "help"
	IntentCustom    Intent = "custom"
	IntentEcho      Intent = "echo"
)

type Rule struct {
	Intent   Intent
	Triggers []string
}

// Rules are tested in order; the first rule with a trigger contained in
// the normalized input wins.
var Rules = []Rule{
	{Intent: IntentWeather, Triggers: []string{"clima", "tempo"}},
	{Intent: IntentNews, Triggers: []string{"notícia", "noticia"}},
	{Intent: IntentCurrency, Triggers: []string{"moeda", "dólar", "euro"}},
	{Intent: IntentTime, Triggers: []string{"hora", "fuso"}},
	{Intent: IntentTranslate, Triggers: []string{"traduz", "tradução"}},
	{Intent: IntentJoke, Triggers: []string{"piada", "engraçado"}},
	{Intent: IntentQuote, Triggers: []string{"citação", "frase", "inspiração"}},
	{Intent: IntentSearch, Triggers: []string{"busca", "pesquisa", "procura"}},
	{Intent: IntentGreeting, Triggers: []string{"olá", "oi", "hey"}},
	{Intent: IntentHelp, Triggers: []string{"ajuda", "help"}},
}

var lower = cases.Lower(language.BrazilianPortuguese)

// Normalize composes accents, lowercases and trims, so "NOTÍCIA" typed
// with combining marks still contains "notícia".
func Normalize(input string) string {
	return strings.TrimSpace(lower.String(norm.NFC.String(input)))
}

// Match returns the first built-in intent whose trigger appears in the
// normalized input, or IntentEcho.
func Match(normalized string) Intent {
	for _, r := range Rules {
		if containsAny(normalized, r.Triggers) {
			return r.Intent
		}
	}
	return IntentEcho
}

func containsAny(s string, triggers []string) bool {
	for _, t := range triggers {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}
