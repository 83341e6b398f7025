package mailer

// The campaign body is spliced into a fixed organizational wrapper by
// plain concatenation. Campaign authors write only the inner message.
const (
	bodyHeader = `<html>
<body style="margin:0;padding:0;background-color:#f4f4f4;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px 0;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:4px;">
<tr><td style="padding:32px;font-family:Arial,sans-serif;font-size:15px;color:#333333;line-height:1.6;">
`

	bodyFooter = `
</td></tr>
<tr><td style="padding:16px 32px;border-top:1px solid #e0e0e0;font-family:Arial,sans-serif;font-size:12px;color:#999999;">
You are receiving this message because you are registered with our institute.
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>`
)

// RenderBody wraps a campaign's message in the organizational template.
func RenderBody(message string) string {
	return bodyHeader + message + bodyFooter
}
