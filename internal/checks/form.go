package checks

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldops/tech-checkin/internal/models"
)

// Form field names the n8n confirmation form expects. The work-number field
// name warns form users off editing it because the value routes the
// submission back to the right tracker row.
const (
	formFieldTechName  = "Tech Name"
	formFieldTime      = "Time"
	formFieldLocation  = "Location"
	formFieldSiteID    = "Site ID"
	formFieldWorkNum   = "Work Number - Please don't change"
	formFieldSignature = "sig"
)

// ErrInvalidFormToken is returned when a form link token fails verification.
var ErrInvalidFormToken = errors.New("invalid form token")

// formTimeLayout renders appointment times in the confirmation form.
const formTimeLayout = "2006-01-02 15:04 MST"

// FormLinker builds pre-filled confirmation form URLs and signs them so the
// webhook coming back can be trusted.
type FormLinker struct {
	baseURL    string
	workflowID string
	secret     []byte
	ttl        time.Duration
}

// FormClaims are the signed claims embedded in each form link.
type FormClaims struct {
	SiteID       string `json:"site_id"`
	WorkOrderNum string `json:"work_order_num,omitempty"`
	jwt.RegisteredClaims
}

// NewFormLinker creates a FormLinker. An empty secret disables signing and
// verification, matching the original deployment which had none.
func NewFormLinker(baseURL, workflowID, secret string, ttl time.Duration) *FormLinker {
	return &FormLinker{
		baseURL:    strings.TrimRight(baseURL, "/"),
		workflowID: workflowID,
		secret:     []byte(secret),
		ttl:        ttl,
	}
}

// BuildURL renders the pre-filled confirmation form URL for an appointment.
func (f *FormLinker) BuildURL(details *models.TechDetails) (string, error) {
	params := []struct {
		key, value string
	}{
		{formFieldTechName, details.TechName},
		{formFieldTime, details.ApptTime.Format(formTimeLayout)},
		{formFieldLocation, details.Address},
		{formFieldSiteID, details.SiteID},
		{formFieldWorkNum, details.WorkOrderNum},
	}

	var query strings.Builder
	for _, p := range params {
		if p.value == "" {
			continue
		}
		if query.Len() > 0 {
			query.WriteByte('&')
		}
		query.WriteString(escape(p.key))
		query.WriteByte('=')
		query.WriteString(escape(p.value))
	}

	if len(f.secret) > 0 {
		token, err := f.sign(details)
		if err != nil {
			return "", fmt.Errorf("signing form link: %w", err)
		}
		if query.Len() > 0 {
			query.WriteByte('&')
		}
		query.WriteString(formFieldSignature)
		query.WriteByte('=')
		query.WriteString(escape(token))
	}

	return fmt.Sprintf("%s/form/%s?%s", f.baseURL, f.workflowID, query.String()), nil
}

// sign issues the HS256 token carried in the sig parameter.
func (f *FormLinker) sign(details *models.TechDetails) (string, error) {
	now := time.Now()
	claims := FormClaims{
		SiteID:       details.SiteID,
		WorkOrderNum: details.WorkOrderNum,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(f.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
}

// VerifyToken checks a sig token from a form submission and returns its
// claims. With signing disabled every token passes.
func (f *FormLinker) VerifyToken(token string) (*FormClaims, error) {
	if len(f.secret) == 0 {
		return &FormClaims{}, nil
	}

	claims := &FormClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return f.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidFormToken
	}
	return claims, nil
}

// escape percent-encodes a query component with spaces as %20, the encoding
// the form platform expects (plus signs are taken literally there).
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
