package main

import (
	"fmt"
	"time"

	"rollcall/internal/anticheat"
	"rollcall/internal/attendance"
	"rollcall/internal/pending"
)

// User-facing replies. Internal reason codes stay on the server; the gateway
// only ever forwards these texts.
const (
	msgNotRegistered = "You are not registered for attendance. Please contact an admin."
	msgNoIntent      = "Please start a check-in or check-out first, then share your location."
	msgCancelled     = "Cancelled. Nothing was recorded."
)

func promptFor(action pending.Action) string {
	if action == pending.AwaitingCheckOut {
		return "Please share your current location to check out."
	}
	return "Please share your current location to check in."
}

func validationMessage(code anticheat.Code) string {
	switch code {
	case anticheat.CodeRelayedInput:
		return "Forwarded locations are not accepted. Please share your current location directly."
	case anticheat.CodeStaleInput:
		return "That location is too old. Please share your current location."
	case anticheat.CodeFutureTimestamp:
		return "Your device clock looks wrong. Please check it and try again."
	case anticheat.CodeRateLimited:
		return "Too many attempts. Please wait a minute and try again."
	}
	return "Your location could not be verified. Please try again."
}

func checkInMessage(res attendance.CheckInResult, loc *time.Location) string {
	if res.OK {
		when := res.Record.Timestamp.In(loc).Format("15:04")
		if res.Late {
			return fmt.Sprintf("Checked in at %s. You are %d minutes late.", when, res.MinutesLate)
		}
		return fmt.Sprintf("Checked in at %s. You are on time!", when)
	}

	switch res.Code {
	case attendance.CodeAlreadyCheckedIn:
		when := "earlier today"
		if res.Record != nil {
			when = res.Record.Timestamp.In(loc).Format("15:04")
		}
		return fmt.Sprintf("You already checked in today at %s.", when)
	case attendance.CodeNoSiteConfigured:
		return "No attendance site is configured yet. Please contact an admin."
	case attendance.CodeOutOfRange:
		return fmt.Sprintf("You are %.0f m from %s, outside the %.0f m check-in radius. Please move closer.",
			res.Distance, res.Site.Name, res.RadiusMeters)
	}
	return "Check-in could not be recorded. Please try again."
}

func checkOutMessage(res attendance.CheckOutResult, loc *time.Location) string {
	if res.OK {
		when := res.Record.Timestamp.In(loc).Format("15:04")
		return fmt.Sprintf("Checked out at %s. Work duration: %s.", when, attendance.FormatDuration(res.WorkDuration))
	}

	switch res.Code {
	case attendance.CodeNoCheckInYet:
		return "You have not checked in today. Please check in first."
	case attendance.CodeAlreadyCheckedOut:
		return "You already checked out today."
	case attendance.CodeNoSiteConfigured:
		return "No attendance site is configured yet. Please contact an admin."
	case attendance.CodeOutOfRange:
		return fmt.Sprintf("You are %.0f m from %s, outside the %.0f m radius. Check-out also requires being on site.",
			res.Distance, res.Site.Name, res.RadiusMeters)
	}
	return "Check-out could not be recorded. Please try again."
}
