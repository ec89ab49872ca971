package kommo

type customFieldValue struct {
	Value    string `json:"value"`
	EnumCode string `json:"enum_code,omitempty"`
}

type customField struct {
	FieldCode string             `json:"field_code"`
	Values    []customFieldValue `json:"values"`
}

type contactPayload struct {
	Name               string        `json:"name"`
	CustomFieldsValues []customField `json:"custom_fields_values,omitempty"`
}

type tag struct {
	Name string `json:"name"`
}

type ref struct {
	ID int `json:"id"`
}

type leadEmbedded struct {
	Tags     []tag `json:"tags,omitempty"`
	Contacts []ref `json:"contacts,omitempty"`
}

type leadPayload struct {
	Name     string       `json:"name"`
	StatusID int          `json:"status_id"`
	Price    int64        `json:"price"`
	Embedded leadEmbedded `json:"_embedded"`
}

// embeddedIDs cobre as respostas de /contacts e /leads, que só diferem na chave.
type embeddedIDs struct {
	Embedded struct {
		Contacts []ref `json:"contacts"`
		Leads    []ref `json:"leads"`
	} `json:"_embedded"`
}
