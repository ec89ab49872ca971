package microsoft

type calendarsResponse struct {
	Value    []calendar `json:"value"`
	NextLink string     `json:"@odata.nextLink"`
}

type calendar struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	HexColor          string `json:"hexColor"`
	IsDefaultCalendar bool   `json:"isDefaultCalendar"`
}

type eventsResponse struct {
	Value     []event `json:"value"`
	NextLink  string  `json:"@odata.nextLink"`
	DeltaLink string  `json:"@odata.deltaLink"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type attendee struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

// removed aparece no delta quando o evento foi apagado.
type removed struct {
	Reason string `json:"reason"`
}

type event struct {
	ID                   string           `json:"id"`
	Subject              string           `json:"subject"`
	BodyPreview          string           `json:"bodyPreview"`
	Location             location         `json:"location"`
	Start                dateTimeTimeZone `json:"start"`
	End                  dateTimeTimeZone `json:"end"`
	IsAllDay             bool             `json:"isAllDay"`
	IsCancelled          bool             `json:"isCancelled"`
	ShowAs               string           `json:"showAs"`
	WebLink              string           `json:"webLink"`
	LastModifiedDateTime string           `json:"lastModifiedDateTime"`
	Attendees            []attendee       `json:"attendees"`
	Removed              *removed         `json:"@removed"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
