package email

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

type BookingDetails struct {
	SiteName        string
	CourtName       string
	Date            string
	TimeRange       string
	CustomerName    string
	PlayerCount     int
	RefereeIncluded bool
	Price           int64
	DepositAmount   int64
	DepositDeadline string
	BookingURL      string
}

type ChallengeMatchedDetails struct {
	SiteName     string
	CourtName    string
	Date         string
	TimeRange    string
	TeamName     string
	OpponentName string
	Price        int64
	TeamShare    int64
	BookingURL   string
}

func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

// FormatAmount renders minor units with thousands separators, e.g. 45,000.
func FormatAmount(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

func BuildBookingConfirmation(details BookingDetails) Message {
	siteName := orDefault(details.SiteName, "your site")
	subject := fmt.Sprintf("Booking Confirmed - %s", siteName)
	if details.DepositAmount > 0 {
		subject = fmt.Sprintf("Booking Received, Deposit Pending - %s", siteName)
	}

	lines := []string{
		fmt.Sprintf("Hi %s, your court booking is registered.", orDefault(details.CustomerName, "there")),
		"",
		fmt.Sprintf("Site: %s", siteName),
		fmt.Sprintf("Court: %s", orDefault(details.CourtName, "TBD")),
		fmt.Sprintf("Date: %s", orDefault(details.Date, "TBD")),
		fmt.Sprintf("Time: %s", orDefault(details.TimeRange, "TBD")),
	}
	if details.PlayerCount > 0 {
		lines = append(lines, fmt.Sprintf("Players: %d", details.PlayerCount))
	}
	if details.RefereeIncluded {
		lines = append(lines, "Referee: Included")
	}
	lines = append(lines, fmt.Sprintf("Price: %s", FormatAmount(details.Price)))

	if details.DepositAmount > 0 {
		lines = append(lines,
			"",
			fmt.Sprintf("A deposit of %s is required to hold this slot.", FormatAmount(details.DepositAmount)),
		)
		if deadline := strings.TrimSpace(details.DepositDeadline); deadline != "" {
			lines = append(lines, fmt.Sprintf("Send proof of payment before %s.", deadline))
		}
	}
	if url := strings.TrimSpace(details.BookingURL); url != "" {
		lines = append(lines, "", fmt.Sprintf("Booking: %s", url))
	}

	return Message{Subject: subject, Body: strings.Join(lines, "\n")}
}

func BuildChallengeMatched(details ChallengeMatchedDetails) Message {
	siteName := orDefault(details.SiteName, "your site")
	lines := []string{
		fmt.Sprintf("%s, your challenge has a rival: %s.",
			orDefault(details.TeamName, "Your team"), orDefault(details.OpponentName, "another team")),
		"",
		fmt.Sprintf("Site: %s", siteName),
		fmt.Sprintf("Court: %s", orDefault(details.CourtName, "TBD")),
		fmt.Sprintf("Date: %s", orDefault(details.Date, "TBD")),
		fmt.Sprintf("Time: %s", orDefault(details.TimeRange, "TBD")),
		fmt.Sprintf("Court price: %s", FormatAmount(details.Price)),
	}
	if details.TeamShare > 0 {
		lines = append(lines, fmt.Sprintf("Your team's share: %s", FormatAmount(details.TeamShare)))
	}
	if url := strings.TrimSpace(details.BookingURL); url != "" {
		lines = append(lines, "", fmt.Sprintf("Booking: %s", url))
	}

	return Message{
		Subject: fmt.Sprintf("Challenge Matched - %s", siteName),
		Body:    strings.Join(lines, "\n"),
	}
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
