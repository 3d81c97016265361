package customer

// DemoRecords returns the built-in demo customers used when no fixtures
// file is configured.
func DemoRecords() []*Record {
	return []*Record{
		{
			ID:                    "cust_001",
			FirstName:             "Sarah",
			Email:                 "sarah@example.com",
			Phone:                 "+15550100001",
			Region:                "EU",
			Timezone:              "Europe/London",
			EngagementPattern:     "morning",
			LifecycleStage:        StageNew,
			EngagementScore:       0.7,
			ChurnRisk:             0.1,
			CustomerValue:         120,
			PurchaseCount:         1,
			DaysSinceSignup:       5,
			DaysSinceLastActivity: 1,
			PurchaseFrequencyDays: 30,
			Consent:               Consent{GDPR: true, WhatsApp: true},
		},
		{
			ID:                    "cust_002",
			FirstName:             "John",
			Email:                 "john@example.com",
			Phone:                 "+15550100002",
			Region:                "US",
			Timezone:              "America/New_York",
			EngagementPattern:     "evening",
			LifecycleStage:        StageAtRisk,
			EngagementScore:       0.35,
			ChurnRisk:             0.65,
			CustomerValue:         750,
			PurchaseCount:         6,
			DaysSinceSignup:       400,
			DaysSinceLastActivity: 120,
			PurchaseFrequencyDays: 90,
			Consent:               Consent{GDPR: true},
		},
		{
			ID:                    "cust_003",
			FirstName:             "Emma",
			Email:                 "emma@example.com",
			Phone:                 "+15550100003",
			Region:                "EU",
			Timezone:              "Europe/Paris",
			EngagementPattern:     "afternoon",
			LifecycleStage:        StageActive,
			EngagementScore:       0.8,
			ChurnRisk:             0.15,
			CustomerValue:         2000,
			CartValue:             250,
			CartItems:             []string{"Product A", "Product B"},
			PurchaseCount:         12,
			DaysSinceSignup:       200,
			DaysSinceLastActivity: 2,
			PurchaseFrequencyDays: 20,
			Consent:               Consent{GDPR: true, WhatsApp: true},
		},
		{
			ID:                    "cust_004",
			FirstName:             "liam",
			Email:                 "liam@example.com",
			Region:                "CA",
			Timezone:              "America/Toronto",
			EngagementPattern:     "evening",
			LifecycleStage:        StageChurned,
			EngagementScore:       0.1,
			ChurnRisk:             0.9,
			CustomerValue:         3400,
			PurchaseCount:         20,
			DaysSinceSignup:       900,
			DaysSinceLastActivity: 210,
			PurchaseFrequencyDays: 150,
		},
	}
}

// NewDemoProvider returns a StaticProvider loaded with DemoRecords.
func NewDemoProvider() *StaticProvider {
	return NewStaticProvider(DemoRecords()...)
}
