// Package mail renders and delivers verification mail for photoauth.
//
// SMTPMailer sends through an SMTP relay. LogMailer writes the confirmation
// link to a structured logger and is meant for development.
package mail
