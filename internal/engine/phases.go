package engine

// nextPhase and prevPhase walk the fixed session lifecycle. Both ends
// self-loop: complete has no successor, setup has no predecessor.
var nextPhase = map[Phase]Phase{
	PhaseSetup:         PhaseTeamFormation,
	PhaseTeamFormation: PhaseAcquisition,
	PhaseAcquisition:   PhaseAnalysis,
	PhaseAnalysis:      PhaseReview,
	PhaseReview:        PhaseComplete,
	PhaseComplete:      PhaseComplete,
}

var prevPhase = map[Phase]Phase{
	PhaseSetup:         PhaseSetup,
	PhaseTeamFormation: PhaseSetup,
	PhaseAcquisition:   PhaseTeamFormation,
	PhaseAnalysis:      PhaseAcquisition,
	PhaseReview:        PhaseAnalysis,
	PhaseComplete:      PhaseReview,
}
