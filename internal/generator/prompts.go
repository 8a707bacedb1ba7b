package generator

import (
	"fmt"
	"strings"
)

// Шаблоны промтов для всех агентов пайплайна.
// Подстановка через fmt.Sprintf, порядок аргументов соответствует
// порядку %s в шаблоне.

const sketchboardTemplate = `
You are a well experienced and master at story writing.

Create a story sketchboard using the following specifications:

Genre: %s
Tone: %s

Character Data (to help you select. These are just for help. Optional):
"""
%s
"""

---

REQUIRED OUTPUT FORMAT - Fill each section completely:

**Genre:** [Specify the genre]

**Tone:** [Specify the tone]

**Main Character(s):**
- Name, age, basic appearance
- What they want most
- What they fear most
- Current situation

**Secondary Characters (2-3):**
- Name, age, basic appearance
- relationship to main character
- Key trait or role in story
- What they want most
- What they fear most
- Current situation

**Setting:**
- Location and time
- Why the main character is there

**Story Outline:**
1. Opening hook (1 sentence)
2. Initial conflict/problem
3. Character's first attempt to solve it
4. Plot (3-4 sentences)
5. Complication or setback
6. Character's realization or change
7. Resolution

**Theme:** What is this story really about? (1-2 sentences)

**Target Age Group:** What age should the story be made for?

---

INSTRUCTIONS:
- Write clearly and concisely
- Focus on one central conflict
- Make the main character's goal specific and relatable
- Ensure each story beat connects logically to the next
- Output ONLY the filled template above
`

// BuildSketchboardPrompt собирает промт для скетча новой истории.
func BuildSketchboardPrompt(genres []string, tone string, names []string) string {
	return fmt.Sprintf(sketchboardTemplate, strings.Join(genres, ", "), tone, strings.Join(names, ", "))
}

const continuationSketchboardTemplate = `
You are a master story architect with a cinematic imagination and a deep understanding of emotional storytelling, narrative structure, and character psychology.

Use the following comprehensive context to plan the next page of the story.
Maintain continuity in location, conflicts, mood, character emotional states, arcs, and relationships.
Introduce new tensions or events that evolve the story naturally.

---

PREVIOUS STORY CONTEXT:
"""
%s
"""

---

STORY DETAILS:
Genre: %s
Tone: %s

CHARACTER CONTEXT:
"""
%s
"""

Available Names: %s

---

REQUIRED OUTPUT FORMAT - Fill each section:

**Genre:** [Same as input]

**Tone:** [Same as input]

**Current Characters:**
- Main: [Brief status update from where they left off]
- Secondary: [Their current situation]

**New Characters (if any):**
- Name, age, basic appearance
- relationship to main character
- Key trait or role in story
- What they want most
- What they fear most
- Current situation

**Setting:**
- Location (same or new)
- Time progression from previous scene

**Next Scene Outline:**
1. Opening: How does this scene connect to the previous ending?
2. New conflict or development
3. Character reactions/decisions
4. Complication or discovery
5. Character growth or change
6. Scene ending that sets up what comes next

**Character Goals:**
- What does each character want in this next scene?
- How have their goals changed from before?

---

INSTRUCTIONS:
- Build directly from the previous story's ending
- Advance the plot with new developments
- Keep characters consistent with their established personalities
- Create natural story progression
`

// BuildContinuationSketchboardPrompt собирает промт для скетча следующей страницы.
func BuildContinuationSketchboardPrompt(genre, tone, previousContext, characterContext string, names []string) string {
	return fmt.Sprintf(continuationSketchboardTemplate, previousContext, genre, tone, characterContext, strings.Join(names, ", "))
}

const draftTemplate = `
You are a master storyteller with the precision of Raymond Carver, the emotional depth of Alice Munro, and the cinematic vision of a film director.

Transform the following sketchboard into a complete, immersive story of 300-500 words.

---

Sketchboard:
"""
%s
"""

---

WRITING REQUIREMENTS:
- Start with action or dialogue, not description
- Use the sketchboard's genre, tone, and age group
- Include all main characters from the sketchboard
- Follow the story outline provided
- Match the target age group's reading level

STYLE GUIDELINES:
- Show character emotions through actions and dialogue
- If it is a biography, write it in first person as the main character is writing this story.
- Don't use phrases like "The air thickened" or too much description about "the air" around the characters. Avoid words like "shroud". Use more descriptive terms for saying what is happening.
- Use concrete, specific details
- Vary sentence lengths
- Include sensory details (what characters see, hear, feel)
- Make dialogue natural and brief
- Set this as a start of a bigger story.

FORMATTING:
- Put dialogue on separate lines with space above and below
- Use simple language for readers under 25
- Limit complex vocabulary to 3-5 words maximum

OUTPUT: Return only the story text. No title, explanations, or commentary.
`

// BuildDraftPrompt собирает промт для черновика новой истории.
func BuildDraftPrompt(sketch string) string {
	return fmt.Sprintf(draftTemplate, sketch)
}

const continuationDraftTemplate = `
You are a master storyteller with the emotional precision of Alice Munro, the narrative restraint of Raymond Carver, and the cinematic eye of a film director.
---

PREVIOUS SCENE (for context only - do NOT repeat or summarize):
"""
%s
"""

---

Continue this above story by writing the next scene (300-500 words).

NEXT SCENE GUIDE:
"""
%s
"""

---

STORY AND CHARACTER RULES YOU MUST FOLLOW:
%s

---

CONTINUATION REQUIREMENTS:
- Start immediately where the previous scene ended
- Use the same characters, tone, and setting established
- Follow the sketch's plot developments exactly
- Maintain the same writing style and voice
- Do NOT reintroduce characters already established
- Only introduce new characters if specified in the sketch

WRITING GUIDELINES:
- Continue the existing narrative flow seamlessly
- If it is a biography, write it in first person as the main character is writing this story.
- Don't use phrases like "The air thickened" or too much description about "the air" around the characters. Avoid words like "shroud". Use more descriptive terms for saying what is happening.
- Keep dialogue natural and brief
- Use specific, concrete details
- Show character emotions through actions
- Match the established reading level
- End at a natural pause, not a conclusion

WHAT NOT TO DO:
- Do not repeat information from the previous scene
- Do not change the established tone or style
- Do not summarize what happened before
- Do not add characters not mentioned in the sketch
- Do not contradict previous events

OUTPUT: Write only the story continuation. No title, explanations, or commentary.
`

// BuildContinuationDraftPrompt собирает промт для черновика следующей страницы.
func BuildContinuationDraftPrompt(previousContent, sketch, rules string) string {
	return fmt.Sprintf(continuationDraftTemplate, previousContent, sketch, rules)
}

const critiqueTemplate = `
You are a seasoned story editor with expertise in reader psychology and narrative engagement. You understand what makes readers put a book down versus what compels them to keep turning pages.

Analyze the following short story draft with the precision of a professional editor and the insight of a reader psychology expert.

---

Initial idea Sketch:
%s

---

Story Draft:
"""
%s
"""

---

You have to see the story for the following points
- Check if the story is based on the genre and tone and based on the sketch provided.
- Does the first line/paragraph immediately engage? What specific elements work or fall flat?
- How effectively does the story build and release emotional tension? Where are the peaks and valleys?
- Reader Engagement: What moments create that "just one more page" feeling? Where might readers lose interest?
- How quickly do readers bond with the protagonist? What makes them care about the outcome?
- What feels fresh versus familiar? Does the author's voice come through distinctly?
- Does each sentence/paragraph propel the story forward? Any dead spots or pacing issues?
- Does the conclusion deliver emotional/intellectual satisfaction while leaving room for continuation?
- Prose quality, dialogue authenticity, sensory details, show vs. tell balance
- How naturally could this expand into a longer work? What threads are set up for development?
- What will readers remember about this story tomorrow? Next week?

---

Output Requirements (Only return recommendations, nothing else):
Recommendation points to make this draft better.

---

Your goal: Help transform a good story into an unforgettable one.

Just return the 3-5 recommendations as bullet points. Only what is required to make this story better.
`

// BuildCritiquePrompt собирает промт для критики черновика новой истории.
func BuildCritiquePrompt(draft, sketch string) string {
	return fmt.Sprintf(critiqueTemplate, sketch, draft)
}

const continuationCritiqueTemplate = `
You are a professional story editor known for emotionally intelligent critique.

The following is a **draft of the next page** in an ongoing story. Your task is to:
- Analyze the emotional pacing and clarity of the writing
- Point out any inconsistencies in character, tone, or logic
- Highlight any areas that feel flat, overwritten, or underexplored
- Make suggestions that deepen the reader's emotional investment

---

What has happened till now:
%s

---

Story Draft:
"""
%s
"""

---

You have to see the story for the following points
- Check if the story is well in continuation with what happened until now?
- Check if the story is based on the genre and tone and based on the sketch provided.
- Does the first line/paragraph immediately engage? What specific elements work or fall flat?
- How effectively does the story build? Where are the peaks and valleys?
- Reader Engagement: What moments create that "just one more page" feeling? Where might readers lose interest?
- How quickly do readers bond with the protagonist? What makes them care about the outcome?
- What feels fresh versus familiar? Does the author's voice come through distinctly?
- Does each sentence/paragraph propel the story forward? Any dead spots or pacing issues?
- Does the conclusion deliver emotional/intellectual satisfaction while leaving room for continuation?
- Prose quality, dialogue authenticity, sensory details, show vs. tell balance
- How naturally could this expand into a longer work? What threads are set up for development?
- What will readers remember about this story tomorrow? Next week?

---

Output Requirements (Only return recommendations, nothing else):
Recommendation points to make this draft better.

---
Your goal: Help transform a good story into an unforgettable one.

Just return the 3-5 recommendations as bullet points. Only what is required to make this story better.
`

// BuildContinuationCritiquePrompt собирает промт для критики черновика продолжения.
func BuildContinuationCritiquePrompt(draft, previousContent string) string {
	return fmt.Sprintf(continuationCritiqueTemplate, previousContent, draft)
}

const finalStoryTemplate = `
You are a master storyteller at the peak of your craft, with the ability to transform rough material into literary gold.

You have been given a story idea, an initial draft, and professional editorial feedback. Your task is to synthesize all three into a polished, emotionally powerful final story that readers will remember long after finishing.

---

Original Story Idea:
"""
%s
"""

---

Initial Draft:
"""
%s
"""

---

Editorial Analysis:
"""
%s
"""

---

Create the final version of this story (300-500 words) by:

- Implementing the strongest suggestions from the critique
- Don't change what is already working in the draft.
- Preserving the core emotional truth of the original concept
- Enhancing sensory details and cinematic moments
- Strengthening character voice and motivation
- Improving pacing and emotional rhythm
- Crafting a more impactful ending that satisfies yet opens possibilities
- Ensuring every sentence serves the story's emotional core.

--

**Very important**
- The draft is only to be refined.
- You don't omit things from the draft. Everything in the draft needs to be in the final version.
- Don't always start with 'As ...'
- You just have to understand the critical points and write what is not working or missing.

Write with the precision of a poet, the pacing of a filmmaker, and the emotional intelligence of a master psychologist. Create something that feels both inevitable and surprising.

---

Output Requirements:
- Deliver only the refined story text.
- No commentary, no title, no explanations
- Just the final story itself, polished to perfection.
- Don't even tell me "Here is the refined version" or "here is the polished text".

---

Only return the final story. Don't add title in your response.
`

// BuildFinalStoryPrompt собирает промт для финальной версии первой страницы.
func BuildFinalStoryPrompt(sketch, draft, critique string) string {
	return fmt.Sprintf(finalStoryTemplate, sketch, draft, critique)
}

const continuationFinalTemplate = `
You are an elite story architect, wielding narrative mastery to transform raw material into unforgettable fiction.

CHARACTERS IN PLAY:
%s

---

STORY DRAFT:
%s

EDITORIAL GUIDANCE:
%s

----

Create the final version of this story (300-500 words) by:

- Implementing the strongest suggestions from the critique
- Don't change what is already working in the draft.
- Preserving the core emotional truth of the original concept
- Enhancing sensory details and cinematic moments
- Strengthening character voice and motivation
- Improving pacing and emotional rhythm
- Crafting a more impactful ending that satisfies yet opens possibilities
- Ensuring every sentence serves the story's emotional core.

---

**Very important**
- The draft is to be refined by changing what the critiques says.
- You don't omit things from the draft.
- Don't always start with 'As ...'
- You just have to understand the critical points and write what is not working or missing.

---

Output Requirements:
- Deliver only the refined story text.
- No commentary, no title, no explanations
- Just the final story itself, polished to perfection.
- Don't even tell me "Here is the refined version" or "here is the polished text".

---

Only return the final story. Don't add title in your response.
- Don't ask me anything after ending.
`

// BuildContinuationFinalPrompt собирает промт для финальной версии продолжения.
func BuildContinuationFinalPrompt(characterContext, draft, critique string) string {
	return fmt.Sprintf(continuationFinalTemplate, characterContext, draft, critique)
}

const titleTemplate = `
You are an excellent book title writer.

I'll give you a story, and you have to give me a good engaging title for it that is very indulging to read the story, and it should not be generic.

Content:
%s

Only give me the **title** as plain text. No other explanation outside of it.
`

// BuildTitlePrompt собирает промт для заголовка истории.
func BuildTitlePrompt(story string) string {
	return fmt.Sprintf(titleTemplate, story)
}

const extractCharactersTemplate = `
You are a character analysis expert. Extract and structure all character information from the provided story sketchboard with precision and completeness.

---

Story Sketchboard:
%s

---

Parse the character details and return a well-structured JSON object. For any missing information, make reasonable inferences based on the story context, genre, and tone.

Required JSON Structure:

{
  "main_characters": [
    {
      "name": "string",
      "age": "integer",
      "role": "string",
      "core_desire": "string",
      "deepest_fear": "string",
      "current_situation": "string",
      "personality_traits": ["string", "string"],
      "current_emotional_state": "string",
      "character_arc_stage": "string",
      "last_action": "string",
      "motivation_evolution": "string"
    }
  ],
  "secondary_characters": [
    {
      "name": "string (extract or create if unnamed)",
      "age": "integer (estimate if not specified)",
      "role": "string (their function/occupation)",
      "core_desire": "string",
      "deepest_fear": "string",
      "current_situation": "string",
      "personality_traits": ["string", "string"],
      "current_emotional_state": "string",
      "character_arc_stage": "string",
      "last_action": "string",
      "motivation_evolution": "string",
      "relationship_to_main": "string (ally, enemy, love interest, etc.)",
      "description": "string (key characteristics or background)",
      "significance": "string (why they matter to the story)"
    }
  ],
  "relationships": [
    {
      "character_1_name": "string",
      "character_2_name": "string",
      "relationship_type": "string (ally, enemy, love interest, family, mentor)"
    }
  ]
}

Guidelines:
- Only give names from context. Do not add your own.
- Ages should be realistic estimates based on roles and context
- Personality traits should be 2-4 key descriptors
- Include all mentioned characters, even if briefly described
- Make logical inferences to fill gaps while staying true to the source material.

Return only valid JSON. No explanations, comments, or additional text.
`

// BuildExtractCharactersPrompt собирает промт экстракции ростера из скетча.
func BuildExtractCharactersPrompt(sketch string) string {
	return fmt.Sprintf(extractCharactersTemplate, sketch)
}

const extractNewCharactersTemplate = `
Extract character information from this story sketchboard and return valid JSON.
---

SKETCHBOARD:
%s

---
EXTRACTION RULES:
- Only extract characters explicitly mentioned in the text
- Use exact names from the sketchboard - do not create new names
- If no name is given, use their role (e.g., "teacher", "neighbor")
- Only fill fields with information actually present in the text
- For missing information, use null or empty string
- Separate characters into the correct categories as labeled in the sketchboard

JSON FORMAT:
{
  "main_characters": [
    {
      "name": "string",
      "age": "integer",
      "role": "string",
      "core_desire": "string",
      "deepest_fear": "string",
      "current_situation": "string",
      "personality_traits": ["string", "string"],
      "current_emotional_state": "string",
      "character_arc_stage": "string",
      "last_action": "string",
      "motivation_evolution": "string"
    }
  ],
  "secondary_characters": [
    {
      "name": "string (extract or create if unnamed)",
      "age": "integer (estimate if not specified)",
      "role": "string (their function/occupation)",
      "core_desire": "string",
      "deepest_fear": "string",
      "current_situation": "string",
      "personality_traits": ["string", "string"],
      "current_emotional_state": "string",
      "character_arc_stage": "string",
      "last_action": "string",
      "motivation_evolution": "string",
      "relationship_to_main": "string (connection described in the text. For example: ally, enemy, love interest, etc.)",
      "description": "string (key characteristics or background)",
      "significance": "string (why they matter to the story)"
    }
  ],
  "new_characters": [
    {
      "name": "string (extract or create if unnamed)",
      "age": "integer (estimate if not specified)",
      "role": "string (their function/occupation)",
      "core_desire": "string",
      "deepest_fear": "string",
      "current_situation": "string",
      "personality_traits": ["string", "string"],
      "current_emotional_state": "string",
      "character_arc_stage": "string",
      "last_action": "string",
      "motivation_evolution": "string",
      "relationship_to_main": "string (connection described in the text. For example: ally, enemy, love interest, etc.)",
      "description": "string (key characteristics or background)",
      "significance": "string (why they matter to the story)"
    }
  ]
}

IMPORTANT:
- Look for section headers like "Current Characters", "Main Characters", "Secondary Characters:", "New Characters:"
- Only include characters listed under "New Characters" in the new_characters array
- Use exact text from sketchboard - do not infer or add details not present
- Return valid JSON only, no other text
`

// BuildExtractNewCharactersPrompt собирает промт экстракции новых персонажей.
func BuildExtractNewCharactersPrompt(sketch string) string {
	return fmt.Sprintf(extractNewCharactersTemplate, sketch)
}

const extractEventsTemplate = `
You are an expert story event analyst.

Your task is to extract and list **key story events** from the following story text.

---

Content to analyze:
%s

---

**INSTRUCTIONS:**
- Break the text into 2-5 significant events that drive the story.
- For each event, extract:

  - event_type: One of [plot_point, character_development, conflict_escalation, resolution, discovery]
  - event_description: A short, clear sentence describing what happened.
  - characters_involved: List of character names involved.
  - emotional_impact: One of [high, medium, low]
  - consequences: List 1-3 consequences or outcomes.
  - setup_for_future: Boolean indicating if this event foreshadows or sets up future conflict.

---

**OUTPUT REQUIREMENTS:**
- Return a JSON array with one object per event.
- Each object must follow this JSON structure exactly:

{
  "event_type": "string",
  "event_description": "string",
  "characters_involved": ["string", "string"],
  "emotional_impact": "string",
  "consequences": ["string", "string"],
  "setup_for_future": true
}

---

**EXAMPLE OUTPUT:**

[
  {
    "event_type": "conflict_escalation",
    "event_description": "Alice argues with Bob about the missing map.",
    "characters_involved": ["Alice", "Bob"],
    "emotional_impact": "high",
    "consequences": ["Trust is broken", "They split up"],
    "setup_for_future": true
  }
]

---

ONLY output valid JSON with no commentary. Return only the JSON object.
`

// BuildExtractEventsPrompt собирает промт экстракции событий из контента страницы.
func BuildExtractEventsPrompt(content string) string {
	return fmt.Sprintf(extractEventsTemplate, content)
}

const extractMetadataTemplate = `
You are an expert story analyst.

Given the following sketchboard and story text, extract key metadata in JSON format.

---
**Sketch**
"""
%s
"""
---

**Story:**
"""
%s
"""

---

**Output JSON Format:**

{
  "current_status": "...",
  "main_theme": "...",
  "central_conflict": "...",
  "target_age_group": "...",
  "emotional_arc": "...",
  "story_summary": "...",
  "last_emotional_state": "...",
  "next_planned_direction": "..."
}

---

Return only valid JSON with no extra commentary. Only json as output.
`

// BuildExtractMetadataPrompt собирает промт экстракции метаданных истории.
func BuildExtractMetadataPrompt(sketch, story string) string {
	return fmt.Sprintf(extractMetadataTemplate, sketch, story)
}

const imagePromptTemplate = `
Create a detailed image generation prompt in around 100 words for a professional book cover based on the provided sketch and story elements.

SKETCH ELEMENTS:
%s

STORY CONTEXT:
%s

Generate a comprehensive image prompt that includes:

VISUAL COMPOSITION:
- Incorporate visual elements that can be in the cover of this book.
- Design for book cover proportions
- Create compelling focal points and visual hierarchy

SETTING & CHARACTER PRIORITIES:
- Prioritize the most visually striking elements from the sketch.
- You can keep it abstract, like flowers, colorful, pale, dark, bright, etc.
- If the location/setting is magnificent or unique, you should ask to make it the main point of the cover.
- Characters are optional. The cover should be visually fantastic.
- Include architectural, landscape, or environmental details that create wow factor, if present.
- Maintain authentic period/genre styling if specified

MOOD & ATMOSPHERE:
- Match the emotional tone of the story.
- Use appropriate lighting, color palette, and weather conditions
- Create genre-appropriate atmosphere.

TECHNICAL SPECIFICATIONS:
- High resolution, professional book cover quality
- No text in the image.
- Balanced composition that works at thumbnail size
- Avoid cluttered or busy backgrounds behind potential text areas.

OUTPUT FORMAT:
Provide a single, detailed paragraph describing the complete book cover image. Be specific about colors, lighting, element positioning, background elements, and overall composition. Include all elements naturally integrated into a cohesive, marketable book cover design.

FINAL IMAGE PROMPT:
`

// BuildImagePrompt собирает промт для генерации описания обложки.
func BuildImagePrompt(sketch, story string) string {
	return fmt.Sprintf(imagePromptTemplate, sketch, story)
}
