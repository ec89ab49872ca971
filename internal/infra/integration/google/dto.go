package google

type calendarListResponse struct {
	Items         []calendarListEntry `json:"items"`
	NextPageToken string              `json:"nextPageToken"`
}

type calendarListEntry struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	SummaryOverride string `json:"summaryOverride"`
	BackgroundColor string `json:"backgroundColor"`
	TimeZone        string `json:"timeZone"`
	Primary         bool   `json:"primary"`
}

type eventsResponse struct {
	Items         []event `json:"items"`
	NextPageToken string  `json:"nextPageToken"`
	NextSyncToken string  `json:"nextSyncToken"`
}

type eventTime struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
}

type attendee struct {
	Email string `json:"email"`
}

type event struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	HTMLLink    string     `json:"htmlLink"`
	Updated     string     `json:"updated"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
