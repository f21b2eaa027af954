// internal/creator/prompt.go
package creator

import "strings"

const compositeInstructions = `Transform the costume reference into a full professional photo by placing the person's head from the source image onto a complete human body wearing ONLY the costume items actually shown in the reference image - do not add or imagine any clothing not present. If the costume shows only a top/shirt, generate body with just that top; if it shows top and pants, include both; if accessories like watch or belt are visible, include them, but NEVER add items not shown in the original costume reference. If the costume is on a hanger, mannequin, or showcase display, generate a realistic human body with natural arms, hands, shoulders, and appropriate torso/legs based on what clothing is actually displayed. Extract and preserve the exact facial features, skin tone, and head shape from the source image. Match the head size proportionally to the body with natural human proportions and align the neck correctly with the collar/neckline. Position arms naturally at sides or in professional pose with both hands visible. Blend the skin tone of the face, neck, and hands perfectly with realistic human skin. Replace any hanger, mannequin, or display background with a clean plain white or light neutral professional background. Place the provided logo image on the specified position of the costume (or top-left chest area if not specified), ensuring the logo appears professionally printed/embroidered on the fabric with appropriate size that maintains logo clarity and visibility, following fabric contours naturally with proper lighting and shadows matching the garment. Match the lighting across entire body and all present garments. Ensure the displayed clothing fits naturally with realistic shadows and fabric draping. Do not invent or add any clothing items, accessories, or garments not explicitly shown in the costume reference. Generate a high-resolution result showing the person wearing EXACTLY what the costume reference displays with professional photo quality and integrated logo.`

// ComposePrompt wraps the user's prompt in the compositing instructions sent
// to the generator.
func ComposePrompt(userPrompt string) string {
	return strings.TrimSpace(compositeInstructions + "\n\n  Original user prompt: " + strings.TrimSpace(userPrompt))
}
