// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signed request field names in canonical order.
const (
	FieldD       = "d"
	FieldDSign   = "d_sign"
	FieldPD      = "pd"
	FieldPDSign  = "pd_sign"
	FieldRef     = "ref"
	FieldRefSign = "ref_sign"
	FieldType    = "type"
	FieldHash    = "hash"
	FieldID      = "id"
)

// RequiredFields lists every signed field the API call needs.
var RequiredFields = []string{
	FieldD, FieldDSign, FieldPD, FieldPDSign, FieldRef, FieldRefSign, FieldType, FieldHash, FieldID,
}

// ScriptRoot is the prefix every companion script path must carry.
const ScriptRoot = "/assets/js/"

// Payload holds the signed fields scraped from an episode page.
type Payload struct {
	D       string
	DSign   string
	PD      string
	PDSign  string
	Ref     string
	RefSign string
	Type    string
	Hash    string
	ID      string
}

// Get returns a field by its wire name.
func (p Payload) Get(field string) string {
	switch field {
	case FieldD:
		return p.D
	case FieldDSign:
		return p.DSign
	case FieldPD:
		return p.PD
	case FieldPDSign:
		return p.PDSign
	case FieldRef:
		return p.Ref
	case FieldRefSign:
		return p.RefSign
	case FieldType:
		return p.Type
	case FieldHash:
		return p.Hash
	case FieldID:
		return p.ID
	}
	return ""
}

func (p *Payload) set(field, value string) {
	switch field {
	case FieldD:
		p.D = value
	case FieldDSign:
		p.DSign = value
	case FieldPD:
		p.PD = value
	case FieldPDSign:
		p.PDSign = value
	case FieldRef:
		p.Ref = value
	case FieldRefSign:
		p.RefSign = value
	case FieldType:
		p.Type = value
	case FieldHash:
		p.Hash = value
	case FieldID:
		p.ID = value
	}
}

// Form encodes the payload plus the constant fields the API expects.
func (p Payload) Form() url.Values {
	form := url.Values{}
	for _, f := range RequiredFields {
		form.Set(f, p.Get(f))
	}
	form.Set("bad_user", "false")
	form.Set("info", "{}")
	form.Set("cdn_is_working", "true")
	return form
}

// MissingFields returns every required field that is empty, in canonical order.
func MissingFields(p Payload) []string {
	var missing []string
	for _, f := range RequiredFields {
		if p.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// ValidScriptPath reports whether path looks like a companion script path.
func ValidScriptPath(path string) bool {
	return path != "" && strings.HasPrefix(path, ScriptRoot)
}

// URLParams is the JSON block some page variants embed as `var urlParams = '{...}'`.
type URLParams struct {
	D           string `json:"d"`
	DSign       string `json:"d_sign"`
	PD          string `json:"pd"`
	PDSign      string `json:"pd_sign"`
	Ref         string `json:"ref"`
	RefSign     string `json:"ref_sign"`
	AdvertDebug bool   `json:"advert_debug"`
	MinAge      int    `json:"min_age"`
	FirstURL    bool   `json:"first_url"`
}

func (u *URLParams) get(field string) string {
	if u == nil {
		return ""
	}
	switch field {
	case FieldD:
		return u.D
	case FieldDSign:
		return u.DSign
	case FieldPD:
		return u.PD
	case FieldPDSign:
		return u.PDSign
	case FieldRef:
		return u.Ref
	case FieldRefSign:
		return u.RefSign
	}
	return ""
}

// Document is what the payload extractor found in one page.
type Document struct {
	Payload    Payload
	ScriptPath string
	URLParams  *URLParams
	// Matched records which strategy produced each field, keyed by field name.
	Matched map[string]string
	// URLParamsErr is set when a urlParams block was present but not valid JSON.
	URLParamsErr error
}

type fieldStrategy struct {
	Name    string
	Field   string
	Pattern *regexp.Regexp
}

type scriptStrategy struct {
	Name string
	Find func(doc string) string
}

func varPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`var\s*` + name + `\s+=\s+['"](.*?)['"];`)
}

func assignPattern(target string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(target) + `\s*=\s*['"](.*?)['"];`)
}

// fieldStrategies are tried in order; the first match for a field wins.
// New markup variants go in as new entries.
var fieldStrategies = []fieldStrategy{
	{Name: "var-domain", Field: FieldD, Pattern: varPattern("domain")},
	{Name: "var-d-sign", Field: FieldDSign, Pattern: varPattern("d_sign")},
	{Name: "var-pd", Field: FieldPD, Pattern: varPattern("pd")},
	{Name: "var-pd-sign", Field: FieldPDSign, Pattern: varPattern("pd_sign")},
	{Name: "var-ref", Field: FieldRef, Pattern: varPattern("ref")},
	{Name: "var-ref-sign", Field: FieldRefSign, Pattern: varPattern("ref_sign")},
	{Name: "videoinfo-type", Field: FieldType, Pattern: assignPattern("videoInfo.type")},
	{Name: "vinfo-type", Field: FieldType, Pattern: assignPattern("vInfo.type")},
	{Name: "var-type", Field: FieldType, Pattern: regexp.MustCompile(`var\s+type\s*=\s*['"](.*?)['"];`)},
	{Name: "videoinfo-hash", Field: FieldHash, Pattern: assignPattern("videoInfo.hash")},
	{Name: "vinfo-hash", Field: FieldHash, Pattern: assignPattern("vInfo.hash")},
	{Name: "videoinfo-id", Field: FieldID, Pattern: assignPattern("videoInfo.id")},
	{Name: "vinfo-id", Field: FieldID, Pattern: assignPattern("vInfo.id")},
	{Name: "var-video-id", Field: FieldID, Pattern: regexp.MustCompile(`var\s+videoId\s*=\s*['"](.*?)['"];`)},
}

// urlParamsFields can fall back to the urlParams JSON block.
var urlParamsFields = []string{FieldD, FieldDSign, FieldPD, FieldPDSign, FieldRef, FieldRefSign}

var urlParamsPattern = regexp.MustCompile(`(?i)var\s*urlParams\s*=\s*['"](\{.*\})['"]`)

func regexScript(name string, re *regexp.Regexp) scriptStrategy {
	return scriptStrategy{Name: name, Find: func(doc string) string {
		if m := re.FindStringSubmatch(doc); m != nil {
			return m[1]
		}
		return ""
	}}
}

// scriptStrategies locate the companion script path, in order.
var scriptStrategies = []scriptStrategy{
	regexScript("script-tag-app", regexp.MustCompile(`(?i)<script\s*type="text/javascript"\s*src="(/assets/js/app\..*?)">`)),
	regexScript("script-tag-player", regexp.MustCompile(`(?i)<script\s*type="text/javascript"\s*src="(/assets/js/app\.player_.*?\.js)"></script>`)),
	regexScript("player-link-array", regexp.MustCompile(`(?i)var\s+playerLink\s*=\s*\[\s*["'](/assets/js/app\..*?\.js)["']\s*\];`)),
	{Name: "dom-script-src", Find: domScriptSrc},
}

func domScriptSrc(doc string) string {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	src, _ := d.Find(`script[src^="/assets/js/app."]`).First().Attr("src")
	return src
}

// ExtractDocument scans page text for the signed payload and the companion script path.
// It never fails; absent values are left empty.
func ExtractDocument(doc string) Document {
	out := Document{Matched: make(map[string]string, len(RequiredFields))}

	if m := urlParamsPattern.FindStringSubmatch(doc); m != nil {
		var params URLParams
		if err := json.Unmarshal([]byte(m[1]), &params); err != nil {
			out.URLParamsErr = err
		} else {
			out.URLParams = &params
		}
	}

	for _, s := range fieldStrategies {
		if _, done := out.Matched[s.Field]; done {
			continue
		}
		if m := s.Pattern.FindStringSubmatch(doc); m != nil && m[1] != "" {
			out.Payload.set(s.Field, m[1])
			out.Matched[s.Field] = s.Name
		}
	}

	for _, f := range urlParamsFields {
		if _, done := out.Matched[f]; done {
			continue
		}
		if v := out.URLParams.get(f); v != "" {
			out.Payload.set(f, v)
			out.Matched[f] = "url-params"
		}
	}

	for _, s := range scriptStrategies {
		if p := s.Find(doc); p != "" {
			out.ScriptPath = p
			out.Matched["script"] = s.Name
			break
		}
	}
	return out
}
