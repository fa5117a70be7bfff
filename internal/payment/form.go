package payment

import (
	"html/template"
	"io"
	"strings"

	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
)

// FormID is the DOM id of the auto-submitting payment form.
const FormID = "netcommerce_payment_form"

var formTemplate = template.Must(template.New("pay").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}"{{if .RTL}} dir="rtl"{{end}}>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<p><strong>Thank you for your order.</strong> We are now redirecting you to NetCommerce to make payment.</p>
<form action="{{.Action}}" method="post" id="{{.FormID}}">
{{- range .Params}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<input type="submit" class="button alt" id="submit_{{.FormID}}" value="Pay now">
<a class="button cancel" href="{{.CancelURL}}">Cancel order &amp; restore cart</a>
</form>
<script>document.getElementById("{{.FormID}}").submit();</script>
</body>
</html>
`))

var unavailableTemplate = template.Must(template.New("unavailable").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<p>Payment with {{.Title}} is currently unavailable. Please choose another payment method or try again later.</p>
<a class="button" href="{{.CartURL}}">Return to cart</a>
</body>
</html>
`))

type formView struct {
	Title     string
	Lang      string
	RTL       bool
	Action    string
	FormID    string
	Params    []netcommerce.Param
	CancelURL string
}

type unavailableView struct {
	Title   string
	CartURL string
}

func renderForm(w io.Writer, title, language, action, cancelURL string, req netcommerce.Request) error {
	lang := strings.ToLower(language)
	if lang == "" {
		lang = "en"
	}
	return formTemplate.Execute(w, formView{
		Title:     title,
		Lang:      lang,
		RTL:       lang == "ar",
		Action:    action,
		FormID:    FormID,
		Params:    req.Params,
		CancelURL: cancelURL,
	})
}
