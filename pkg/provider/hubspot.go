package provider

import "golang.org/x/oauth2"

const (
	hubspotAuthURL  = "https://app.hubspot.com/oauth/authorize"
	hubspotTokenURL = "https://api.hubapi.com/oauth/v1/token"
	hubspotAPIBase  = "https://api.hubapi.com"
)

// HubSpot returns the HubSpot CRM provider. Client credentials travel in the
// token request body.
func HubSpot() Provider {
	return Provider{
		Name: "hubspot",
		Endpoint: oauth2.Endpoint{
			AuthURL:   hubspotAuthURL,
			TokenURL:  hubspotTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{
			"crm.objects.contacts.read",
			"crm.objects.contacts.write",
			"oauth",
		},
		APIBaseURL:          hubspotAPIBase,
		ListPath:            "/crm/v3/objects/%s",
		DefaultResourceType: "contacts",
	}
}
