// Package calibration measures a patient's range of motion, either through
// the full guided protocol or a one-rep warm-up, and persists the result for
// adaptive exercise ranges.
package calibration

// Measurement is one guided movement of the full protocol. Joints are the
// sided keypoint names whose vertex angle is sampled; NormalMax/NormalMin are
// the clinical reference extremes for a seated patient, used both for scoring
// and as fallbacks when a measurement yields no samples.
type Measurement struct {
	Name            string
	Display         string
	Joints          [3]string
	Instruction     string
	RestInstruction string
	NormalMax       float64
	NormalMin       float64
}

// Measurements is the full seated protocol, in presentation order.
var Measurements = []Measurement{
	// Shoulder flexion (arm forward/up)
	{
		Name:            "R_Shoulder_Hip_Elbow",
		Display:         "Right Shoulder - Raise Arm Forward",
		Joints:          [3]string{"R_hip", "R_shoulder", "R_elbow"},
		Instruction:     "Raise your RIGHT arm FORWARD and UP as high as you can",
		RestInstruction: "Now lower your RIGHT arm down to your side",
		NormalMax:       180,
		NormalMin:       10,
	},
	{
		Name:            "L_Shoulder_Hip_Elbow",
		Display:         "Left Shoulder - Raise Arm Forward",
		Joints:          [3]string{"L_hip", "L_shoulder", "L_elbow"},
		Instruction:     "Raise your LEFT arm FORWARD and UP as high as you can",
		RestInstruction: "Now lower your LEFT arm down to your side",
		NormalMax:       180,
		NormalMin:       10,
	},

	// Shoulder abduction (arm to side)
	{
		Name:            "R_Shoulder_Hip_Wrist",
		Display:         "Right Shoulder - Raise Arm to Side",
		Joints:          [3]string{"R_hip", "R_shoulder", "R_wrist"},
		Instruction:     "Raise your RIGHT arm OUT TO THE SIDE as high as you can",
		RestInstruction: "Now lower your RIGHT arm to your side",
		NormalMax:       150,
		NormalMin:       20,
	},
	{
		Name:            "L_Shoulder_Hip_Wrist",
		Display:         "Left Shoulder - Raise Arm to Side",
		Joints:          [3]string{"L_hip", "L_shoulder", "L_wrist"},
		Instruction:     "Raise your LEFT arm OUT TO THE SIDE as high as you can",
		RestInstruction: "Now lower your LEFT arm to your side",
		NormalMax:       150,
		NormalMin:       20,
	},

	// Elbow flexion
	{
		Name:            "R_Elbow",
		Display:         "Right Elbow - Bend",
		Joints:          [3]string{"R_shoulder", "R_elbow", "R_wrist"},
		Instruction:     "BEND your RIGHT elbow, bring hand to shoulder",
		RestInstruction: "Now STRAIGHTEN your RIGHT elbow completely",
		NormalMax:       150,
		NormalMin:       5,
	},
	{
		Name:            "L_Elbow",
		Display:         "Left Elbow - Bend",
		Joints:          [3]string{"L_shoulder", "L_elbow", "L_wrist"},
		Instruction:     "BEND your LEFT elbow, bring hand to shoulder",
		RestInstruction: "Now STRAIGHTEN your LEFT elbow completely",
		NormalMax:       150,
		NormalMin:       5,
	},

	// Shoulder rotation (elbow away from body)
	{
		Name:            "R_Elbow_Shoulder_Hip",
		Display:         "Right Shoulder - Arm Away from Body",
		Joints:          [3]string{"R_elbow", "R_shoulder", "R_hip"},
		Instruction:     "Raise your RIGHT elbow OUT TO THE SIDE",
		RestInstruction: "Now bring your RIGHT elbow back to your side",
		NormalMax:       180,
		NormalMin:       0,
	},
	{
		Name:            "L_Elbow_Shoulder_Hip",
		Display:         "Left Shoulder - Arm Away from Body",
		Joints:          [3]string{"L_elbow", "L_shoulder", "L_hip"},
		Instruction:     "Raise your LEFT elbow OUT TO THE SIDE",
		RestInstruction: "Now bring your LEFT elbow back to your side",
		NormalMax:       180,
		NormalMin:       0,
	},

	// Horizontal adduction (hand across the body)
	{
		Name:            "R_Wrist_Shoulder_Shoulder",
		Display:         "Right Arm - Across Body",
		Joints:          [3]string{"R_wrist", "R_shoulder", "L_shoulder"},
		Instruction:     "Bring your RIGHT hand across your body to the LEFT",
		RestInstruction: "Now bring your RIGHT hand back out to the side",
		NormalMax:       180,
		NormalMin:       60,
	},
	{
		Name:            "L_Wrist_Shoulder_Shoulder",
		Display:         "Left Arm - Across Body",
		Joints:          [3]string{"L_wrist", "L_shoulder", "R_shoulder"},
		Instruction:     "Bring your LEFT hand across your body to the RIGHT",
		RestInstruction: "Now bring your LEFT hand back out to the side",
		NormalMax:       180,
		NormalMin:       60,
	},

	// Shoulder extension (hand behind the back)
	{
		Name:            "R_Wrist_Hip_Hip",
		Display:         "Right Arm - Behind Body",
		Joints:          [3]string{"R_wrist", "R_hip", "L_hip"},
		Instruction:     "Move your RIGHT hand behind your back",
		RestInstruction: "Bring your RIGHT hand back to front",
		NormalMax:       160,
		NormalMin:       35,
	},
	{
		Name:            "L_Wrist_Hip_Hip",
		Display:         "Left Arm - Behind Body",
		Joints:          [3]string{"L_wrist", "L_hip", "R_hip"},
		Instruction:     "Move your LEFT hand behind your back",
		RestInstruction: "Bring your LEFT hand back to front",
		NormalMax:       160,
		NormalMin:       35,
	},

	// Arm straightness
	{
		Name:            "R_Wrist_Elbow_Shoulder",
		Display:         "Right Arm - Straightness",
		Joints:          [3]string{"R_wrist", "R_elbow", "R_shoulder"},
		Instruction:     "STRAIGHTEN your RIGHT arm completely",
		RestInstruction: "Relax your RIGHT arm",
		NormalMax:       180,
		NormalMin:       120,
	},
	{
		Name:            "L_Wrist_Elbow_Shoulder",
		Display:         "Left Arm - Straightness",
		Joints:          [3]string{"L_wrist", "L_elbow", "L_shoulder"},
		Instruction:     "STRAIGHTEN your LEFT arm completely",
		RestInstruction: "Relax your LEFT arm",
		NormalMax:       180,
		NormalMin:       120,
	},

	// Diagonal raise
	{
		Name:            "R_Wrist_Shoulder_Hip",
		Display:         "Right Diagonal Raise",
		Joints:          [3]string{"R_wrist", "R_shoulder", "R_hip"},
		Instruction:     "Raise your RIGHT hand diagonally up and across",
		RestInstruction: "Lower your RIGHT hand down",
		NormalMax:       135,
		NormalMin:       80,
	},
	{
		Name:            "L_Wrist_Shoulder_Hip",
		Display:         "Left Diagonal Raise",
		Joints:          [3]string{"L_wrist", "L_shoulder", "L_hip"},
		Instruction:     "Raise your LEFT hand diagonally up and across",
		RestInstruction: "Lower your LEFT hand down",
		NormalMax:       135,
		NormalMin:       80,
	},
}

// normalMaxByName indexes the protocol's reference maxima for scoring.
var normalMaxByName = func() map[string]float64 {
	m := make(map[string]float64, len(Measurements))
	for _, meas := range Measurements {
		m[meas.Name] = meas.NormalMax
	}
	return m
}()
