package classifier

// Default rubrics per verification step. Deliberately permissive: the
// vision model is unreliable, so each rubric lists several acceptable
// evidence categories rather than one exact screen. Override per step
// through CLASSIFIER_STEP1_RUBRIC / CLASSIFIER_STEP2_RUBRIC (or the
// *_RUBRIC_FILE variants) without rebuilding.

const defaultStep1Rubric = `Analyze this screenshot and determine if it shows a successful registration completion on the ALLEN educational platform or similar affiliate platform.

Look for these SPECIFIC indicators of successful ALLEN registration:
- "Thank you for sharing your details" message
- "Our student advisor will reach out to you" message
- Blue checkmark or success icon with celebration graphics
- ALLEN logo visible with confirmation content
- "Registration successful" or "Welcome" message
- Confirmation page showing the user completed signup
- Any success indicator after form submission

The screenshot should show a SUCCESS/CONFIRMATION screen, NOT the registration form itself.

Respond with ONLY a JSON object (no markdown, no code blocks):
{"verified": true, "reason": "Description of what you found"}
OR
{"verified": false, "reason": "Why verification failed"}`

const defaultStep2Rubric = `Analyze this screenshot and determine if it shows the user has successfully joined a WhatsApp group or channel.

Look for these indicators:
- WhatsApp group chat interface visible
- Group name visible in the chat header
- "You joined using this group's invite link" system message
- Being inside a group chat (not just the invite/join page)
- Messages from other group members visible
- Group info showing membership status

The screenshot must show the user is INSIDE the group, not on the join invitation page.

Respond with ONLY a JSON object (no markdown, no code blocks):
{"verified": true, "reason": "Description of what you found"}
OR
{"verified": false, "reason": "Why verification failed"}`
