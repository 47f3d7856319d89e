package catalog

import "github.com/dukex/flowpilot/pkg/models"

var builtinSchedulingSteps = []models.StepDefinition{
	{
		ID:             "gather_attendees",
		Kind:           models.StepKindGather,
		Title:          "Gather attendees",
		Description:    "Collect who should attend the meeting",
		RequiredFields: []string{"attendees"},
		Critical:       true,
	},
	{
		ID:             "gather_datetime",
		Kind:           models.StepKindGather,
		Title:          "Gather date and time",
		Description:    "Collect when the meeting should happen",
		RequiredFields: []string{"startTime", "endTime"},
		OptionalFields: []string{"duration"},
		DependsOn:      []string{"gather_attendees"},
		Critical:       true,
		Extension: &models.StepExtension{
			FieldTypes: map[string]models.FieldType{
				"startTime": models.FieldTypeTime,
				"endTime":   models.FieldTypeTime,
				"duration":  models.FieldTypeNumber,
			},
		},
	},
	{
		ID:          "check_availability",
		Kind:        models.StepKindExecute,
		Title:       "Check availability",
		Description: "Check attendee calendars for conflicts",
		DependsOn:   []string{"gather_datetime"},
		Extension:   &models.StepExtension{ActionType: "calendar.check_availability"},
	},
	{
		ID:          "confirm_details",
		Kind:        models.StepKindConfirm,
		Title:       "Confirm details",
		Description: "Confirm the meeting details with the user",
		DependsOn:   []string{"check_availability"},
	},
	{
		ID:             "book_meeting",
		Kind:           models.StepKindExecute,
		Title:          "Book meeting",
		Description:    "Create the calendar event and notify attendees",
		DependsOn:      []string{"confirm_details"},
		Critical:       true,
		RetryOnFailure: true,
		Extension:      &models.StepExtension{ActionType: "calendar.book_meeting"},
	},
}

// DefaultSchedulingTemplate returns the built-in scheduling template: five steps
// chained with blocking dependencies that end in book_meeting.
func DefaultSchedulingTemplate() *models.WorkflowTemplate {
	structure, err := MarshalStructure(builtinSchedulingSteps)
	if err != nil {
		panic(err)
	}

	return &models.WorkflowTemplate{
		ID:                   models.BuiltinSchedulingTemplateID,
		Name:                 "Schedule Meeting",
		Description:          "Gather attendees and a time slot, then book the meeting",
		Category:             models.CategoryScheduling,
		Structure:            structure,
		RequiredCapabilities: []string{},
		SuccessRate:          0,
		Active:               true,
	}
}
