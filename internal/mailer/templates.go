package mailer

import "fmt"

// Minimal HTML bodies; the original system's branded templates live in
// the frontend repo.

func WelcomeBody(name, verificationURL string) (subject, body string) {
	return "Bienvenue sur WifiPass",
		fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Votre compte WifiPass a bien été créé.</p>
<p><a href="%s">Vérifiez votre adresse email</a> pour activer toutes les fonctionnalités.</p>`,
			name, verificationURL)
}

func PasswordResetBody(name, resetURL string) (subject, body string) {
	return "Réinitialisation de votre mot de passe",
		fmt.Sprintf(`<p>Bonjour %s,</p>
<p><a href="%s">Cliquez ici</a> pour réinitialiser votre mot de passe. Ce lien expire dans une heure.</p>
<p>Si vous n'êtes pas à l'origine de cette demande, ignorez cet email.</p>`,
			name, resetURL)
}

func TicketSoldBody(name, zoneName string, price int64) (subject, body string) {
	return "Ticket vendu",
		fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Un ticket vient d'être vendu dans la zone <strong>%s</strong> pour %d FCFA.</p>`,
			name, zoneName, price)
}

func WithdrawalStatusBody(name, withdrawalID, status string, amount int64) (subject, body string) {
	return "Mise à jour de votre retrait",
		fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Votre demande de retrait %s (%d FCFA) est maintenant: <strong>%s</strong>.</p>`,
			name, withdrawalID, amount, status)
}

func KYCStatusBody(name, status, reason string) (subject, body string) {
	body = fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Le statut de votre vérification d'identité est maintenant: <strong>%s</strong>.</p>`, name, status)
	if reason != "" {
		body += fmt.Sprintf(`<p>Motif: %s</p>`, reason)
	}
	return "Mise à jour de votre vérification d'identité", body
}
